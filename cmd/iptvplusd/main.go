// iptvplusd is the IPTV Plus backend daemon: it loads and caches panel
// catalogs, drives the playback session state machine, and serves the JSON
// API the web UI talks to, plus Prometheus metrics on /metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iptvplus/iptv-plus/internal/api"
	"github.com/iptvplus/iptv-plus/internal/catalog"
	"github.com/iptvplus/iptv-plus/internal/config"
	"github.com/iptvplus/iptv-plus/internal/fetch"
	"github.com/iptvplus/iptv-plus/internal/httpclient"
	"github.com/iptvplus/iptv-plus/internal/metrics"
	"github.com/iptvplus/iptv-plus/internal/playback"
	"github.com/iptvplus/iptv-plus/internal/recommend"
	"github.com/iptvplus/iptv-plus/internal/xtream"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	fetcher := fetch.New(log, fetch.WithClient(httpclient.WithTimeout(cfg.CatalogTimeout)))
	client := xtream.New(fetcher, log)
	cache := catalog.NewCache()
	norm := catalog.NewNormalizer(log)
	if cfg.ChunkSize > 0 {
		norm.ChunkSize = cfg.ChunkSize
	}
	loader := catalog.NewLoader(client, norm, cache, log)
	sessions := playback.NewManager(client, log)
	reco := recommend.New(cfg.RecommendURL, cfg.RecommendAPIKey, httpclient.WithTimeout(cfg.InteractiveTimeout), log)

	server := api.New(cfg, loader, cache, sessions, reco, log)

	root := http.NewServeMux()
	root.Handle("/metrics", metrics.Handler())
	root.Handle("/", server.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	sessions.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
}
