package config

import (
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	cfg := Load()
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.CatalogTimeout != 30*time.Second {
		t.Errorf("CatalogTimeout = %s", cfg.CatalogTimeout)
	}
	if cfg.InteractiveTimeout != 10*time.Second {
		t.Errorf("InteractiveTimeout = %s", cfg.InteractiveTimeout)
	}
	if cfg.ChunkSize != 0 {
		t.Errorf("ChunkSize = %d", cfg.ChunkSize)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s", cfg.LogLevel)
	}
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("IPTVPLUS_LISTEN", ":9090")
	t.Setenv("IPTVPLUS_CATALOG_TIMEOUT", "45s")
	t.Setenv("IPTVPLUS_CHUNK_SIZE", "500")
	t.Setenv("IPTVPLUS_RECOMMEND_URL", "http://svc")
	t.Setenv("IPTVPLUS_LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.CatalogTimeout != 45*time.Second {
		t.Errorf("CatalogTimeout = %s", cfg.CatalogTimeout)
	}
	if cfg.ChunkSize != 500 {
		t.Errorf("ChunkSize = %d", cfg.ChunkSize)
	}
	if cfg.RecommendURL != "http://svc" {
		t.Errorf("RecommendURL = %s", cfg.RecommendURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s", cfg.LogLevel)
	}
}

func TestLoad_badValuesFallBack(t *testing.T) {
	t.Setenv("IPTVPLUS_CATALOG_TIMEOUT", "depois")
	t.Setenv("IPTVPLUS_INTERACTIVE_TIMEOUT", "-5s")
	t.Setenv("IPTVPLUS_CHUNK_SIZE", "muitos")

	cfg := Load()
	if cfg.CatalogTimeout != 30*time.Second {
		t.Errorf("CatalogTimeout = %s", cfg.CatalogTimeout)
	}
	if cfg.InteractiveTimeout != 10*time.Second {
		t.Errorf("InteractiveTimeout = %s", cfg.InteractiveTimeout)
	}
	if cfg.ChunkSize != 0 {
		t.Errorf("ChunkSize = %d", cfg.ChunkSize)
	}
}
