package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backend Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubsearch",
			Name:      "backend_requests_total",
			Help:      "Total number of search backend requests",
		},
		[]string{"backend", "entity", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hubsearch",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "entity"},
	)

	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubsearch",
			Name:      "backend_errors_total",
			Help:      "Total search backend errors",
		},
		[]string{"backend", "error_type"},
	)

	ShortCircuitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubsearch",
			Name:      "search_short_circuit_total",
			Help:      "Searches answered without a backend call",
		},
		[]string{"reason"}, // "unsatisfiable" / "missing_scope"
	)

	ContainmentChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubsearch",
			Name:      "containment_checks_total",
			Help:      "Containment checks by outcome",
		},
		[]string{"result"}, // "contained" / "not_contained" / "error"
	)

	EntityCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubsearch",
			Name:      "entity_cache_total",
			Help:      "Entity cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss" / "invalidated"
	)
)

var backendMetricsRegistered bool

// RegisterBackendMetrics registers Prometheus backend metrics. Must be called once from main.
func RegisterBackendMetrics() {
	if backendMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(BackendErrorsTotal)
	prometheus.MustRegister(ShortCircuitTotal)
	prometheus.MustRegister(ContainmentChecksTotal)
	prometheus.MustRegister(EntityCacheTotal)
	backendMetricsRegistered = true
}
