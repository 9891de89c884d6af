// Package metrics holds the process-wide Prometheus collectors. Counters are
// registered on the default registry; cmd/iptvplusd exposes them on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchDirect counts logical fetches answered by the direct path.
	FetchDirect = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptvplus_fetch_direct_total",
		Help: "Fetches satisfied by a direct request, no relay needed.",
	})

	// FetchRelay counts fetches rescued by a relay, labelled by relay name.
	FetchRelay = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvplus_fetch_relay_total",
		Help: "Fetches satisfied through a fallback relay.",
	}, []string{"relay"})

	// FetchFailed counts fetches where every path was exhausted.
	FetchFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptvplus_fetch_failed_total",
		Help: "Fetches that failed on the direct path and on every relay.",
	})

	// FetchDuration observes wall time of a whole logical fetch.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "iptvplus_fetch_duration_seconds",
		Help:    "Duration of logical fetches including fallback attempts.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	// CacheHits / CacheMisses count catalog cache lookups by content class.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvplus_catalog_cache_hits_total",
		Help: "Catalog cache hits.",
	}, []string{"class"})
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvplus_catalog_cache_misses_total",
		Help: "Catalog cache misses.",
	}, []string{"class"})

	// NormalizeDropped counts raw records discarded for lacking an id.
	NormalizeDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvplus_normalize_dropped_total",
		Help: "Raw upstream records dropped during normalization.",
	}, []string{"class"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
