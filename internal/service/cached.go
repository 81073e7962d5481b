package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/logger"
)

// fetchCached wraps an aggregation with the response cache. A fresh entry is
// returned as-is; on a miss the aggregation runs and its result is stored.
// When the aggregation fails with a classified upstream error, an expired
// entry for the same key is served instead of the error, so a flapping
// upstream degrades to slightly old numbers rather than a dashboard outage.
func fetchCached[T any](ctx context.Context, s *Service, key string, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok := s.store.Get(ctx, key); ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			s.countCache(true)
			return cached, nil
		}
	}
	s.countCache(false)

	result, err := compute(ctx)
	if err != nil {
		if glpi.IsUpstreamError(err) {
			if raw, _, ok := s.store.GetStale(ctx, key); ok {
				var stale T
				if jsonErr := json.Unmarshal(raw, &stale); jsonErr == nil {
					s.log.Warn("upstream failed, serving stale cache entry",
						logger.String("key", key), logger.Error(err))
					if s.metrics != nil {
						s.metrics.StaleServed.WithLabelValues(keyPrefix(key)).Inc()
					}
					return stale, nil
				}
			}
		}
		return zero, err
	}

	if raw, err := json.Marshal(result); err == nil {
		s.store.Set(ctx, key, raw, s.cfg.ResponseTTL)
	}
	return result, nil
}

// keyPrefix trims a cache key to its family ("rank:entity:..." becomes "rank"),
// keeping metric label cardinality bounded.
func keyPrefix(key string) string {
	prefix, _, _ := strings.Cut(key, ":")
	return prefix
}

func (s *Service) countCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.WithLabelValues("responses").Inc()
	} else {
		s.metrics.CacheMisses.WithLabelValues("responses").Inc()
	}
}
