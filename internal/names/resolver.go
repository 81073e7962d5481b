// Package names resolves GLPI item IDs to display labels. Lookups fan out
// over a bounded worker set, successful labels are cached, and failures
// degrade to a placeholder so one slow lookup never sinks a whole ranking.
package names

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/itsmkit/glpi-dashboard/internal/cache"
	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/logger"
	"github.com/itsmkit/glpi-dashboard/internal/telemetry"
)

// labelTTL is how long a resolved label stays fresh. Names change rarely,
// so this is much longer than the response cache TTL.
const labelTTL = time.Hour

// ItemFetcher is the single-object lookup the resolver needs.
type ItemFetcher interface {
	GetItem(ctx context.Context, itemType string, id int) (glpi.Record, error)
}

// ItemSpec describes how to resolve one GLPI item type.
type ItemSpec struct {
	// Type is the REST item type, e.g. "User".
	Type string
	// Noun appears in fallback labels, e.g. "User ID 5 (timeout)".
	Noun string
	// Label extracts the display label from a fetched record; an empty
	// result falls back to a generic "<Noun> <id>" form.
	Label func(glpi.Record) string
}

// User labels people as "firstname realname", falling back to the login name.
var User = ItemSpec{
	Type: "User",
	Noun: "User",
	Label: func(rec glpi.Record) string {
		full := strings.TrimSpace(rec.String("firstname") + " " + rec.String("realname"))
		if full != "" {
			return full
		}
		return rec.String("name")
	},
}

// Entity labels organizational entities by their full tree path when present.
var Entity = ItemSpec{
	Type: "Entity",
	Noun: "Entity",
	Label: func(rec glpi.Record) string {
		if name := rec.String("completename"); name != "" {
			return name
		}
		return rec.String("name")
	},
}

// Category labels ticket categories by their full tree path when present.
var Category = ItemSpec{
	Type: "ITILCategory",
	Noun: "Category",
	Label: func(rec glpi.Record) string {
		if name := rec.String("completename"); name != "" {
			return name
		}
		return rec.String("name")
	},
}

// Resolution is the outcome of one lookup. Failure carries a short reason
// when the lookup degraded; aggregation logic inspects the fields and only
// the serialization boundary renders the combined display string.
type Resolution struct {
	Label   string
	Failure string
}

// Display renders the user-facing label, folding a failure reason into a
// placeholder such as "User ID 5 (timeout)".
func (res Resolution) Display(spec ItemSpec, id int) string {
	if res.Failure != "" {
		return fmt.Sprintf("%s ID %d (%s)", spec.Noun, id, res.Failure)
	}
	return res.Label
}

// Resolver turns item IDs into labels through a fetcher and a cache.
type Resolver struct {
	fetcher ItemFetcher
	store   cache.Store
	workers int
	log     logger.Logger
	metrics *telemetry.Metrics
}

// NewResolver builds a resolver running at most workers concurrent lookups.
func NewResolver(fetcher ItemFetcher, store cache.Store, workers int,
	log logger.Logger, metrics *telemetry.Metrics) *Resolver {
	if workers < 1 {
		workers = 1
	}
	return &Resolver{
		fetcher: fetcher,
		store:   store,
		workers: workers,
		log:     log,
		metrics: metrics,
	}
}

// ResolveAll resolves every distinct positive ID; zero and negative values
// are sentinels, not items, and are skipped. Every resolved ID is present in
// the result, carrying either its real label or a failure reason; a single
// ID's failure never fails the batch.
func (r *Resolver) ResolveAll(ctx context.Context, spec ItemSpec, ids []int) map[int]Resolution {
	results := make(map[int]Resolution, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.workers)

	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := r.resolve(ctx, spec, id)
			mu.Lock()
			results[id] = res
			mu.Unlock()
		}(id)
	}

	wg.Wait()
	return results
}

// Resolve looks up a single ID.
func (r *Resolver) Resolve(ctx context.Context, spec ItemSpec, id int) Resolution {
	return r.resolve(ctx, spec, id)
}

func (r *Resolver) resolve(ctx context.Context, spec ItemSpec, id int) Resolution {
	key := fmt.Sprintf("name:%s:%d", spec.Type, id)
	if cached, ok := r.store.Get(ctx, key); ok {
		r.countCache("hit")
		return Resolution{Label: string(cached)}
	}
	r.countCache("miss")

	rec, err := r.fetcher.GetItem(ctx, spec.Type, id)
	if err != nil {
		r.log.Warn("name lookup failed",
			logger.String("item_type", spec.Type),
			logger.Int("id", id),
			logger.Error(err))
		// Failures are not cached: the next request retries the lookup.
		return Resolution{Failure: glpi.ErrorKind(err)}
	}

	label := spec.Label(rec)
	if label == "" {
		label = fmt.Sprintf("%s %d", spec.Noun, id)
	}
	r.store.Set(ctx, key, []byte(label), labelTTL)
	return Resolution{Label: label}
}

func (r *Resolver) countCache(outcome string) {
	if r.metrics == nil {
		return
	}
	if outcome == "hit" {
		r.metrics.CacheHits.WithLabelValues("names").Inc()
	} else {
		r.metrics.CacheMisses.WithLabelValues("names").Inc()
	}
}
