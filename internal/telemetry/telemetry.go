// Package telemetry exposes Prometheus metrics for the dashboard backend:
// upstream call latency and errors, cache effectiveness and aggregation
// timings.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all dashboard Prometheus metrics.
type Metrics struct {
	// Upstream (GLPI) call metrics.
	UpstreamRequests *prometheus.CounterVec   // by operation and outcome
	UpstreamDuration *prometheus.HistogramVec // by operation
	UpstreamErrors   *prometheus.CounterVec   // by operation and error kind

	// Cache metrics.
	CacheHits    *prometheus.CounterVec // by cache name
	CacheMisses  *prometheus.CounterVec // by cache name
	StaleServed  *prometheus.CounterVec // by cache key prefix
	SessionReuse prometheus.Counter

	// Aggregation metrics.
	AggregationDuration *prometheus.HistogramVec // by dimension
	RecordsScanned      *prometheus.CounterVec   // by dimension
}

// New creates and registers the metric set on the given registerer.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_upstream_requests_total",
			Help: "Total upstream GLPI API requests",
		}, []string{"operation", "outcome"}),

		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_upstream_duration_seconds",
			Help:    "Latency of upstream GLPI API requests",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 15.0},
		}, []string{"operation"}),

		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_upstream_errors_total",
			Help: "Upstream GLPI API failures by error kind (auth, network, timeout, search)",
		}, []string{"operation", "kind"}),

		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_cache_hits_total",
			Help: "Fresh cache hits by cache name",
		}, []string{"cache"}),

		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_cache_misses_total",
			Help: "Cache misses by cache name",
		}, []string{"cache"}),

		StaleServed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_cache_stale_served_total",
			Help: "Expired cache entries served as a fallback after an upstream failure",
		}, []string{"key"}),

		SessionReuse: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_session_reuse_total",
			Help: "Authentications satisfied by the cached session token",
		}),

		AggregationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_aggregation_duration_seconds",
			Help:    "Wall-clock time of a full ranking or stats aggregation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0},
		}, []string{"dimension"}),

		RecordsScanned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_records_scanned_total",
			Help: "Raw ticket records folded into aggregations",
		}, []string{"dimension"}),
	}
}

// ObserveUpstream records one upstream call.
func (m *Metrics) ObserveUpstream(operation string, elapsed time.Duration, err error, kind string) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.UpstreamErrors.WithLabelValues(operation, kind).Inc()
	}
	m.UpstreamRequests.WithLabelValues(operation, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
