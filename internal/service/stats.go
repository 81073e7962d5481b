package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/logger"
)

// Stats are the period-bounded maintenance counters.
type Stats struct {
	New      int `json:"new"`
	Pending  int `json:"pending"`
	Planned  int `json:"planned"`
	Resolved int `json:"resolved"`
}

// StatusTotals are the date-unbounded per-status counters.
type StatusTotals struct {
	New        int `json:"new"`
	InProgress int `json:"in_progress"`
	Unsolved   int `json:"unsolved"`
	Planned    int `json:"planned"`
	Solved     int `json:"solved"`
	Closed     int `json:"closed"`
	Resolved   int `json:"resolved"`
}

// Stats counts tickets per status within a creation-date range. Counts use
// the zero-width probe and run concurrently; a failed probe degrades that
// one status to zero instead of failing the aggregate, unless every probe
// failed, in which case the first error propagates so the stale cache path
// can take over.
func (s *Service) Stats(ctx context.Context, from, to string) (Stats, error) {
	key := "stats:" + from + ":" + to
	return fetchCached(ctx, s, key, func(ctx context.Context) (Stats, error) {
		counts, err := s.countStatuses(ctx, from, to,
			glpi.StatusNew, glpi.StatusPending, glpi.StatusPlanned, glpi.StatusSolved, glpi.StatusClosed)
		if err != nil {
			return Stats{}, err
		}
		return Stats{
			New:      counts[glpi.StatusNew],
			Pending:  counts[glpi.StatusPending],
			Planned:  counts[glpi.StatusPlanned],
			Resolved: counts[glpi.StatusSolved] + counts[glpi.StatusClosed],
		}, nil
	})
}

// StatusTotals counts tickets per status over all history, with the same
// degradation policy as Stats.
func (s *Service) StatusTotals(ctx context.Context) (StatusTotals, error) {
	return fetchCached(ctx, s, "status-totals", func(ctx context.Context) (StatusTotals, error) {
		counts, err := s.countStatuses(ctx, "", "",
			glpi.StatusNew, glpi.StatusAssigned, glpi.StatusPlanned,
			glpi.StatusPending, glpi.StatusSolved, glpi.StatusClosed)
		if err != nil {
			return StatusTotals{}, err
		}
		return StatusTotals{
			New:        counts[glpi.StatusNew],
			InProgress: counts[glpi.StatusAssigned],
			Unsolved:   counts[glpi.StatusAssigned] + counts[glpi.StatusPending],
			Planned:    counts[glpi.StatusPlanned],
			Solved:     counts[glpi.StatusSolved],
			Closed:     counts[glpi.StatusClosed],
			Resolved:   counts[glpi.StatusSolved] + counts[glpi.StatusClosed],
		}, nil
	})
}

// countStatuses fans the zero-width count probes out over a bounded worker
// set and joins them by status.
func (s *Service) countStatuses(ctx context.Context, from, to string, statuses ...int) (map[int]int, error) {
	started := time.Now()

	counts := make(map[int]int, len(statuses))
	errs := make(map[int]error, len(statuses))
	var mu sync.Mutex

	// Probe failures are recorded per status, never returned from the
	// group, so one bad probe cannot cancel its siblings.
	group := errgroup.Group{}
	group.SetLimit(s.cfg.StatusWorkers)

	for _, status := range statuses {
		group.Go(func() error {
			criteria := glpi.AddDateRange(glpi.AddStatus(nil, status), from, to)
			total, err := s.search.TotalCount(ctx, "Ticket", criteria)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("status count failed, degrading to zero",
					logger.Int("status", status), logger.Error(err))
				errs[status] = err
				counts[status] = 0
				return nil
			}
			counts[status] = total
			return nil
		})
	}
	_ = group.Wait()

	if len(errs) == len(statuses) {
		for _, err := range errs {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.AggregationDuration.WithLabelValues("status").Observe(time.Since(started).Seconds())
	}
	return counts, nil
}
