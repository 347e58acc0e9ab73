package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshesTotal counts topic refreshes by result (ok, error)
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelfeed_refreshes_total",
			Help: "Total number of topic refreshes",
		},
		[]string{"result"},
	)

	// NewItemsTotal counts genuinely new items merged per topic
	NewItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelfeed_new_items_total",
			Help: "Total number of new unique items merged into the cache",
		},
		[]string{"topic"},
	)

	// SourceErrorsTotal counts failed source fetches
	SourceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelfeed_source_errors_total",
			Help: "Total number of feed source fetch failures",
		},
		[]string{"source"},
	)

	// EnrichmentsTotal counts enrichment outcomes (ok, fallback, skipped)
	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelfeed_enrichments_total",
			Help: "Total number of item enrichments by outcome",
		},
		[]string{"outcome"},
	)

	// RateLimitWaitSeconds tracks time spent blocked on a rate limiter
	RateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intelfeed_rate_limit_wait_seconds",
			Help:    "Time spent waiting for rate limiter capacity",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
		},
		[]string{"limiter"},
	)

	// CachedItems tracks the current entry size per topic
	CachedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intelfeed_cached_items",
			Help: "Number of items currently cached per topic",
		},
		[]string{"topic"},
	)

	// PassDuration tracks scheduler pass latency
	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intelfeed_pass_duration_seconds",
			Help:    "Duration of a full scheduler refresh pass",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// Outcome label values for EnrichmentsTotal.
const (
	EnrichOK       = "ok"
	EnrichFallback = "fallback"
	EnrichSkipped  = "skipped"
)

// ObserveRateLimitWait adapts RateLimitWaitSeconds to a limiter wait callback.
func ObserveRateLimitWait(name string, seconds float64) {
	RateLimitWaitSeconds.WithLabelValues(name).Observe(seconds)
}
