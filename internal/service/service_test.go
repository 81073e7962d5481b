package service

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"sync"
	"time"

	"github.com/itsmkit/glpi-dashboard/internal/cache"
	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/logger"
	"github.com/itsmkit/glpi-dashboard/internal/names"
)

// fakeSearcher serves canned records and per-status totals while recording
// how it was called.
type fakeSearcher struct {
	mu          sync.Mutex
	records     []glpi.Record
	totals      map[int]int
	searchErr   error
	totalErrs   map[int]error
	searchCalls int
	lastOpts    glpi.SearchOptions
}

func (f *fakeSearcher) SearchIter(_ context.Context, _ string, opts glpi.SearchOptions) iter.Seq2[glpi.Record, error] {
	f.mu.Lock()
	f.searchCalls++
	f.lastOpts = opts
	records, err := f.records, f.searchErr
	f.mu.Unlock()
	return func(yield func(glpi.Record, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (f *fakeSearcher) Search(ctx context.Context, itemType string, opts glpi.SearchOptions) ([]glpi.Record, error) {
	var out []glpi.Record
	for rec, err := range f.SearchIter(ctx, itemType, opts) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeSearcher) TotalCount(_ context.Context, _ string, criteria []glpi.Criterion) (int, error) {
	status := 0
	for _, c := range criteria {
		if c.Field == glpi.FieldStatus {
			status, _ = strconv.Atoi(c.Value)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.totalErrs[status]; err != nil {
		return 0, err
	}
	return f.totals[status], nil
}

func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchCalls
}

// fakeResolver maps IDs to canned labels and records which IDs were asked.
type fakeResolver struct {
	mu       sync.Mutex
	labels   map[int]string
	failures map[int]string
	asked    []int
}

func (f *fakeResolver) ResolveAll(_ context.Context, _ names.ItemSpec, ids []int) map[int]names.Resolution {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]names.Resolution, len(ids))
	for _, id := range ids {
		f.asked = append(f.asked, id)
		if reason, ok := f.failures[id]; ok {
			out[id] = names.Resolution{Failure: reason}
			continue
		}
		if label, ok := f.labels[id]; ok {
			out[id] = names.Resolution{Label: label}
		} else {
			out[id] = names.Resolution{Label: fmt.Sprintf("Item %d", id)}
		}
	}
	return out
}

func (f *fakeResolver) askedIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.asked...)
}

func newTestService(search *fakeSearcher, resolver *fakeResolver, cfg Config) *Service {
	if cfg.ResponseTTL == 0 {
		cfg.ResponseTTL = time.Minute
	}
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	return New(search, resolver, cache.NewMemory(), cfg, logger.Nop(), nil)
}

func ticketRec(field int, value any) glpi.Record {
	return glpi.Record{glpi.FieldKey(field): value}
}
