// Package observability exposes Prometheus metrics and the fire-and-forget
// counter sink used by the resolution pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	resolverResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_results_total",
			Help: "Location resolutions by the strategy that produced them.",
		},
		[]string{"source"},
	)

	cacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_cache_results_total",
			Help: "Scrape cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_fetch_attempts_total",
			Help: "Content fetch attempts by transport and outcome.",
		},
		[]string{"transport", "outcome"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_invalidations_total",
			Help: "Scrape cache invalidation events by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route, status string, durationSeconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, status).Observe(durationSeconds)
}

func IncResolverResult(source string) {
	resolverResultsTotal.WithLabelValues(source).Inc()
}

func IncCacheResult(tier, outcome string) {
	cacheResultsTotal.WithLabelValues(tier, outcome).Inc()
}

func IncFetchAttempt(transport, outcome string) {
	fetchAttemptsTotal.WithLabelValues(transport, outcome).Inc()
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncInvalidation(outcome string) {
	invalidationsTotal.WithLabelValues(outcome).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
