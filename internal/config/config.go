// Package config reads daemon configuration from the environment. A .env
// file next to the binary is loaded first (kept out of git).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the daemon configuration.
type Config struct {
	// ListenAddr is the API listen address, e.g. ":8080".
	ListenAddr string

	// CatalogTimeout is the per-call budget for catalog queries (auth,
	// class listings, series detail). The panel plus up to three relays
	// must fit inside it.
	CatalogTimeout time.Duration

	// InteractiveTimeout is the shorter budget for calls a user is
	// actively waiting on (playlist import, recommendations).
	InteractiveTimeout time.Duration

	// ChunkSize is the normalizer chunk threshold; 0 keeps the default.
	ChunkSize int

	// RecommendURL / RecommendAPIKey configure the external completion
	// service. Empty URL disables recommendations.
	RecommendURL    string
	RecommendAPIKey string

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		ListenAddr:         getenv("IPTVPLUS_LISTEN", ":8080"),
		CatalogTimeout:     getenvDuration("IPTVPLUS_CATALOG_TIMEOUT", 30*time.Second),
		InteractiveTimeout: getenvDuration("IPTVPLUS_INTERACTIVE_TIMEOUT", 10*time.Second),
		ChunkSize:          getenvInt("IPTVPLUS_CHUNK_SIZE", 0),
		RecommendURL:       os.Getenv("IPTVPLUS_RECOMMEND_URL"),
		RecommendAPIKey:    os.Getenv("IPTVPLUS_RECOMMEND_API_KEY"),
		LogLevel:           getenv("IPTVPLUS_LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
