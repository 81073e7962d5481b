// Package service implements the dashboard aggregations: per-status stats,
// entity/category/technician rankings and the newest-ticket listing. Every
// operation is a stateless pipeline over a snapshot of upstream data,
// fronted by a TTL response cache whose stale entries double as a fallback
// when the upstream is unreachable.
package service

import (
	"context"
	"iter"
	"time"

	"github.com/itsmkit/glpi-dashboard/internal/cache"
	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/logger"
	"github.com/itsmkit/glpi-dashboard/internal/names"
	"github.com/itsmkit/glpi-dashboard/internal/telemetry"
)

// Searcher is the upstream query surface the aggregations consume.
type Searcher interface {
	SearchIter(ctx context.Context, itemType string, opts glpi.SearchOptions) iter.Seq2[glpi.Record, error]
	Search(ctx context.Context, itemType string, opts glpi.SearchOptions) ([]glpi.Record, error)
	TotalCount(ctx context.Context, itemType string, criteria []glpi.Criterion) (int, error)
}

// NameResolver resolves dimension IDs to display labels.
type NameResolver interface {
	ResolveAll(ctx context.Context, spec names.ItemSpec, ids []int) map[int]names.Resolution
}

// Config carries the aggregation policy knobs.
type Config struct {
	// ResponseTTL is the freshness window for cached aggregation results.
	ResponseTTL time.Duration
	// TechTopLimit clamps the technician ranking size.
	TechTopLimit int
	// CountUnassignedNew counts unassigned status-new tickets into the
	// technician ranking's unassigned bucket. Off by default: a new ticket
	// with no technician is not anyone's workload yet.
	CountUnassignedNew bool
	// StatusWorkers bounds the per-status count fan-out.
	StatusWorkers int
}

// Service runs the dashboard aggregations.
type Service struct {
	search  Searcher
	names   NameResolver
	store   cache.Store
	cfg     Config
	log     logger.Logger
	metrics *telemetry.Metrics
}

// New wires a service; metrics may be nil in tests.
func New(search Searcher, resolver NameResolver, store cache.Store, cfg Config,
	log logger.Logger, metrics *telemetry.Metrics) *Service {
	if cfg.StatusWorkers < 1 {
		cfg.StatusWorkers = 4
	}
	return &Service{
		search:  search,
		names:   resolver,
		store:   store,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}
}
