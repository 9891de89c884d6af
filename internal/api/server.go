// Package api is the HTTP boundary consumed by the (external) UI layer:
// account login and catalog load, filtered catalog queries, favorites,
// playlist import, recommendations and playback session control.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/iptvplus/iptv-plus/internal/catalog"
	"github.com/iptvplus/iptv-plus/internal/config"
	"github.com/iptvplus/iptv-plus/internal/playback"
	"github.com/iptvplus/iptv-plus/internal/recommend"
)

// Server holds the daemon's single-account state: the active credential, the
// catalog cache behind it, and the imported playlist items that live outside
// any account.
type Server struct {
	cfg      config.Config
	loader   *catalog.Loader
	cache    *catalog.Cache
	sessions *playback.Manager
	reco     *recommend.Service
	log      *logrus.Entry

	mu   sync.Mutex
	cred *catalog.Credential
	m3u  []catalog.ContentItem
}

// New wires the API server. reco may be nil (feature disabled).
func New(cfg config.Config, loader *catalog.Loader, cache *catalog.Cache, sessions *playback.Manager, reco *recommend.Service, log *logrus.Logger) *Server {
	return &Server{
		cfg:      cfg,
		loader:   loader,
		cache:    cache,
		sessions: sessions,
		reco:     reco,
		log:      log.WithField("component", "api"),
	}
}

// Handler returns the routed handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/playlist/import", s.handlePlaylistImport).Methods(http.MethodPost)

	r.HandleFunc("/api/catalog", s.handleCatalog).Methods(http.MethodGet)
	r.HandleFunc("/api/catalog/{id}/favorite", s.handleToggleFavorite).Methods(http.MethodPost)
	r.HandleFunc("/api/recommendations", s.handleRecommendations).Methods(http.MethodGet)

	r.HandleFunc("/api/session", s.handleSessionStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/session/select", s.handleSelect).Methods(http.MethodPost)
	r.HandleFunc("/api/session/episode", s.handleEpisode).Methods(http.MethodPost)
	r.HandleFunc("/api/session/ready", s.handleReady).Methods(http.MethodPost)
	r.HandleFunc("/api/session/pause", s.handlePause).Methods(http.MethodPost)
	r.HandleFunc("/api/session/resume", s.handleResume).Methods(http.MethodPost)
	r.HandleFunc("/api/session/fault", s.handleFault).Methods(http.MethodPost)
	r.HandleFunc("/api/session/retry", s.handleRetry).Methods(http.MethodPost)
	r.HandleFunc("/api/session/ended", s.handleEnded).Methods(http.MethodPost)
	r.HandleFunc("/api/session/next", s.handleNext).Methods(http.MethodPost)
	r.HandleFunc("/api/session/previous", s.handlePrevious).Methods(http.MethodPost)
	r.HandleFunc("/api/session/autoplay", s.handleAutoplay).Methods(http.MethodPost)
	r.HandleFunc("/api/session/close", s.handleClose).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.logRequests(r))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(start).Round(time.Millisecond).String(),
		}).Debug("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// credential returns the active credential, or ok=false when logged out.
func (s *Server) credential() (catalog.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return catalog.Credential{}, false
	}
	return *s.cred, true
}

// items returns the merged current list: cached account classes in class
// order, then imported playlist channels. The playlist elements are copied
// under the lock; handleToggleFavorite mutates them in place.
func (s *Server) items() []catalog.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.ContentItem
	if s.cred != nil {
		out = s.cache.Items(*s.cred)
	}
	return append(out, s.m3u...)
}
