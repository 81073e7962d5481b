package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmkit/glpi-dashboard/internal/glpi"
)

func TestStats(t *testing.T) {
	search := &fakeSearcher{totals: map[int]int{
		glpi.StatusNew:     12,
		glpi.StatusPending: 4,
		glpi.StatusPlanned: 2,
		glpi.StatusSolved:  30,
		glpi.StatusClosed:  70,
	}}
	svc := newTestService(search, nil, Config{})

	stats, err := svc.Stats(context.Background(), "2024-03-01", "2024-03-31")
	require.NoError(t, err)

	assert.Equal(t, Stats{New: 12, Pending: 4, Planned: 2, Resolved: 100}, stats)
}

func TestStatsDegradesFailingStatusToZero(t *testing.T) {
	search := &fakeSearcher{
		totals: map[int]int{
			glpi.StatusNew:    5,
			glpi.StatusSolved: 8,
		},
		totalErrs: map[int]error{
			glpi.StatusPending: &glpi.NetworkError{Op: "search", Timeout: true, Err: context.DeadlineExceeded},
		},
	}
	svc := newTestService(search, nil, Config{})

	stats, err := svc.Stats(context.Background(), "2024-03-01", "2024-03-31")
	require.NoError(t, err)

	assert.Equal(t, 5, stats.New)
	assert.Zero(t, stats.Pending)
	assert.Equal(t, 8, stats.Resolved)
}

func TestStatsAllProbesFailingPropagates(t *testing.T) {
	probeErr := &glpi.NetworkError{Op: "search", Err: context.DeadlineExceeded}
	search := &fakeSearcher{totalErrs: map[int]error{
		glpi.StatusNew:     probeErr,
		glpi.StatusPending: probeErr,
		glpi.StatusPlanned: probeErr,
		glpi.StatusSolved:  probeErr,
		glpi.StatusClosed:  probeErr,
	}}
	svc := newTestService(search, nil, Config{})

	_, err := svc.Stats(context.Background(), "2024-03-01", "2024-03-31")
	var netErr *glpi.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestStatsStaleFallback(t *testing.T) {
	search := &fakeSearcher{totals: map[int]int{glpi.StatusNew: 3}}
	svc := newTestService(search, nil, Config{ResponseTTL: time.Millisecond})

	warm, err := svc.Stats(context.Background(), "2024-03-01", "2024-03-31")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	probeErr := &glpi.SearchError{Op: "search", StatusCode: 500}
	search.mu.Lock()
	search.totalErrs = map[int]error{
		glpi.StatusNew:     probeErr,
		glpi.StatusPending: probeErr,
		glpi.StatusPlanned: probeErr,
		glpi.StatusSolved:  probeErr,
		glpi.StatusClosed:  probeErr,
	}
	search.mu.Unlock()

	stale, err := svc.Stats(context.Background(), "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, warm, stale)
}

func TestStatusTotals(t *testing.T) {
	search := &fakeSearcher{totals: map[int]int{
		glpi.StatusNew:      10,
		glpi.StatusAssigned: 6,
		glpi.StatusPlanned:  1,
		glpi.StatusPending:  3,
		glpi.StatusSolved:   40,
		glpi.StatusClosed:   60,
	}}
	svc := newTestService(search, nil, Config{})

	totals, err := svc.StatusTotals(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusTotals{
		New:        10,
		InProgress: 6,
		Unsolved:   9,
		Planned:    1,
		Solved:     40,
		Closed:     60,
		Resolved:   100,
	}, totals)
}
