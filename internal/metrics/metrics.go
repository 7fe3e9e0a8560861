package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitepulse_events_total",
			Help: "Total number of events collected",
		},
		[]string{"status"},
	)

	// Key verification metrics
	KeyVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitepulse_key_verifications_total",
			Help: "Total number of API key verification attempts",
		},
		[]string{"result"},
	)

	// Summary cache metrics
	SummaryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitepulse_summary_cache_hits_total",
			Help: "Total number of summary cache hits",
		},
	)

	SummaryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitepulse_summary_cache_misses_total",
			Help: "Total number of summary cache misses",
		},
	)

	SummaryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitepulse_summary_duration_seconds",
			Help:    "Duration of summary computations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitepulse_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"app"},
	)
)
