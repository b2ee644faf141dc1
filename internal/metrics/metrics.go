package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache state
	CacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ziyou_cache_entries",
		Help: "Rows in the game cache, by state.",
	}, []string{"state"}) // state: live, expired

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ziyou_cache_lookups_total",
		Help: "Game cache lookups by result.",
	}, []string{"result"}) // result: hit, miss, error

	CacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ziyou_cache_writes_total",
		Help: "Game cache writes by status.",
	}, []string{"status"}) // status: ok, error

	CacheSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ziyou_cache_swept_total",
		Help: "Expired cache rows removed by sweeps.",
	})

	// Catalog
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ziyou_catalog_requests_total",
		Help: "External catalog API calls by provider, step and status.",
	}, []string{"provider", "step", "status"}) // status: ok, error, empty

	// Pipeline
	RecommendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ziyou_recommend_duration_seconds",
		Help:    "Duration of whole recommendation requests in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	SuggestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ziyou_suggest_duration_seconds",
		Help:    "Duration of suggestion source calls in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	ResolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ziyou_resolution_duration_seconds",
		Help:    "Duration of per-suggestion resolution in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"}) // source: cache, catalog, failed

	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ziyou_resolutions_total",
		Help: "Per-suggestion resolution outcomes.",
	}, []string{"outcome"}) // outcome: cache_hit, resolved, not_found, failed

	Recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ziyou_recommendations_total",
		Help: "Recommendation requests by outcome.",
	}, []string{"outcome"}) // outcome: ok, suggest_unavailable, no_suggestions, no_resolvable_games, canceled
)

// UpdateCacheMetrics refreshes the cache gauges.
func UpdateCacheMetrics(live, expired int64) {
	CacheEntries.WithLabelValues("live").Set(float64(live))
	CacheEntries.WithLabelValues("expired").Set(float64(expired))
}

// ObserveSince records the elapsed time since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
