package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iptvplus/iptv-plus/internal/catalog"
	"github.com/iptvplus/iptv-plus/internal/playback"
	"github.com/iptvplus/iptv-plus/internal/playlist"
	"github.com/iptvplus/iptv-plus/internal/xtream"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadResponse reports per-class counts plus which classes failed, so the UI
// can show "séries indisponíveis" instead of silently presenting an empty
// tab.
type loadResponse struct {
	Counts      map[catalog.Class]int    `json:"counts"`
	ClassErrors map[catalog.Class]string `json:"classErrors,omitempty"`
}

func toLoadResponse(res *catalog.Result) loadResponse {
	out := loadResponse{Counts: res.Counts}
	if len(res.ClassErrors) > 0 {
		out.ClassErrors = make(map[catalog.Class]string, len(res.ClassErrors))
		for class, err := range res.ClassErrors {
			out.ClassErrors[class] = err.Error()
		}
	}
	return out
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var cred catalog.Credential
	if !decodeBody(w, r, &cred) {
		return
	}
	if cred.Empty() {
		writeError(w, http.StatusBadRequest, "missing_fields", "Preencha todos os campos.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CatalogTimeout)
	defer cancel()
	res, err := s.loader.Load(ctx, cred)
	if err != nil {
		s.writeLoadError(w, err)
		return
	}

	s.mu.Lock()
	s.cred = &cred
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, toLoadResponse(res))
}

func (s *Server) writeLoadError(w http.ResponseWriter, err error) {
	var authErr *xtream.AuthError
	switch {
	case errors.As(err, &authErr) && authErr.Kind == xtream.InvalidCredentials:
		writeError(w, http.StatusUnauthorized, "invalid_credentials", authErr.Error())
	case errors.As(err, &authErr):
		writeError(w, http.StatusBadGateway, "unreachable", authErr.Error())
	case errors.Is(err, catalog.ErrEmptyCatalog):
		writeError(w, http.StatusNotFound, "empty_catalog", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "load_failed", err.Error())
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.sessions.Close()
	s.cache.Clear()
	s.mu.Lock()
	s.cred = nil
	s.m3u = nil
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.credential()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not_logged_in", "no active account")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CatalogTimeout)
	defer cancel()
	res, err := s.loader.Refresh(ctx, cred)
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoadResponse(res))
}

func (s *Server) handlePlaylistImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "missing_url", "Insira a URL da lista M3U.")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.InteractiveTimeout)
	defer cancel()
	items, err := playlist.Import(ctx, nil, body.URL)
	if err != nil {
		if errors.Is(err, playlist.ErrNoChannels) {
			writeError(w, http.StatusNotFound, "no_channels", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "import_failed", "Falha ao processar lista M3U. Verifique a URL.")
		return
	}
	s.mu.Lock()
	s.m3u = items
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"imported": len(items)})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r.URL.Query())
	writeJSON(w, http.StatusOK, f.Apply(s.items()))
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if cred, ok := s.credential(); ok {
		if fav, found := s.cache.ToggleFavorite(cred, id); found {
			writeJSON(w, http.StatusOK, map[string]bool{"isFavorite": fav})
			return
		}
	}
	s.mu.Lock()
	for i := range s.m3u {
		if s.m3u[i].ID == id {
			s.m3u[i].IsFavorite = !s.m3u[i].IsFavorite
			fav := s.m3u[i].IsFavorite
			s.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]bool{"isFavorite": fav})
			return
		}
	}
	s.mu.Unlock()
	writeError(w, http.StatusNotFound, "unknown_item", "no item with id "+id)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.reco == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.InteractiveTimeout)
	defer cancel()
	writeJSON(w, http.StatusOK, s.reco.Recommend(ctx, s.items(), r.URL.Query().Get("mood")))
}

// ── Playback session ─────────────────────────────────────────────────────────

func (s *Server) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Status())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	var selected *catalog.ContentItem
	for _, item := range s.items() {
		if item.ID == body.ID {
			it := item
			selected = &it
			break
		}
	}
	if selected == nil {
		writeError(w, http.StatusNotFound, "unknown_item", "no item with id "+body.ID)
		return
	}
	cred, _ := s.credential()
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CatalogTimeout)
	defer cancel()
	st, err := s.sessions.Select(ctx, cred, *selected)
	s.writeSession(w, st, err)
}

func (s *Server) handleEpisode(w http.ResponseWriter, r *http.Request) {
	var ep catalog.Episode
	if !decodeBody(w, r, &ep) {
		return
	}
	if ep.ID == "" {
		writeError(w, http.StatusBadRequest, "missing_episode", "episode id is required")
		return
	}
	st, err := s.sessions.ChooseEpisode(ep)
	s.writeSession(w, st, err)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	st, err := s.sessions.DecoderReady()
	s.writeSession(w, st, err)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	st, err := s.sessions.Pause()
	s.writeSession(w, st, err)
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	st, err := s.sessions.Resume()
	s.writeSession(w, st, err)
}

func (s *Server) handleFault(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind playback.FaultKind `json:"kind"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Kind == "" {
		body.Kind = playback.StreamUnavailable
	}
	st, err := s.sessions.Fault(body.Kind)
	s.writeSession(w, st, err)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CatalogTimeout)
	defer cancel()
	st, err := s.sessions.Retry(ctx)
	s.writeSession(w, st, err)
}

// filtered decodes the filter body and applies it to the current items,
// producing the ordered snapshot the session steps over.
func (s *Server) filtered(w http.ResponseWriter, r *http.Request) ([]catalog.ContentItem, bool) {
	var f Filter
	if !decodeBody(w, r, &f) {
		return nil, false
	}
	return f.Apply(s.items()), true
}

func (s *Server) handleEnded(w http.ResponseWriter, r *http.Request) {
	list, ok := s.filtered(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CatalogTimeout)
	defer cancel()
	st, err := s.sessions.StreamEnded(ctx, list)
	s.writeSession(w, st, err)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	list, ok := s.filtered(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CatalogTimeout)
	defer cancel()
	st, err := s.sessions.Next(ctx, list)
	s.writeSession(w, st, err)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	list, ok := s.filtered(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CatalogTimeout)
	defer cancel()
	st, err := s.sessions.Previous(ctx, list)
	s.writeSession(w, st, err)
}

func (s *Server) handleAutoplay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.sessions.SetAutoplay(body.Enabled)
	writeJSON(w, http.StatusOK, s.sessions.Status())
}

func (s *Server) handleClose(w http.ResponseWriter, _ *http.Request) {
	s.sessions.Close()
	writeJSON(w, http.StatusOK, s.sessions.Status())
}

// writeSession reports the session snapshot. Playback faults are part of the
// snapshot, not HTTP errors: the session stays usable and retryable.
func (s *Server) writeSession(w http.ResponseWriter, st playback.Status, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, playback.ErrNoSession):
		writeError(w, http.StatusConflict, "no_session", err.Error())
	case errors.Is(err, playback.ErrBadTransition):
		writeError(w, http.StatusConflict, "bad_transition", err.Error())
	default:
		// A playback fault: the snapshot already carries the
		// classification and message.
		writeJSON(w, http.StatusOK, st)
	}
}
