package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Supabase REST/RPC/Auth call latency
	UpstreamCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_call_latency_seconds",
			Help:    "Supabase upstream call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"operation", "status"},
	)

	EnrichmentFallbackCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_enrichment_fallback_total",
			Help: "RFQ card enrichment fetches that degraded to an empty result",
		},
		[]string{"fetch", "reason"},
	)

	AuthSessionCacheCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_session_cache_total",
			Help: "Session cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Postgres queries slower than the configured threshold",
		},
		[]string{"command"},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordUpstreamCallLatency(operation, status string, duration time.Duration) {
	UpstreamCallLatency.WithLabelValues(operation, status).Observe(duration.Seconds())
}

func IncrementEnrichmentFallback(fetch, reason string) {
	EnrichmentFallbackCount.WithLabelValues(fetch, reason).Inc()
}

func IncrementAuthSessionCache(result string) {
	AuthSessionCacheCount.WithLabelValues(result).Inc()
}

func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func IncrementSlowQuery(command string) {
	SlowQueryCount.WithLabelValues(command).Inc()
}
