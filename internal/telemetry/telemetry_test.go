package telemetry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/itsmkit/glpi-dashboard/internal/telemetry"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)
	if metrics == nil {
		t.Fatal("expected non-nil metrics")
	}

	// A second fresh registry must not collide with the first.
	if m := telemetry.New(prometheus.NewRegistry()); m == nil {
		t.Fatal("expected non-nil metrics on second registry")
	}
}

func TestObserveUpstream(t *testing.T) {
	metrics := telemetry.New(prometheus.NewRegistry())

	metrics.ObserveUpstream("search", 120*time.Millisecond, nil, "")
	metrics.ObserveUpstream("search", 80*time.Millisecond, errors.New("x"), "timeout")

	if got := testutil.ToFloat64(metrics.UpstreamRequests.WithLabelValues("search", "success")); got != 1 {
		t.Errorf("success requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.UpstreamRequests.WithLabelValues("search", "error")); got != 1 {
		t.Errorf("error requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.UpstreamErrors.WithLabelValues("search", "timeout")); got != 1 {
		t.Errorf("timeout errors = %v, want 1", got)
	}
}

func TestCacheCounters(t *testing.T) {
	metrics := telemetry.New(prometheus.NewRegistry())

	metrics.CacheHits.WithLabelValues("responses").Inc()
	metrics.CacheMisses.WithLabelValues("responses").Add(2)
	metrics.SessionReuse.Inc()

	if got := testutil.ToFloat64(metrics.CacheHits.WithLabelValues("responses")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("responses")); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.SessionReuse); got != 1 {
		t.Errorf("session reuse = %v, want 1", got)
	}
}
