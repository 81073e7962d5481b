package api

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmkit/glpi-dashboard/internal/cache"
	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/logger"
	"github.com/itsmkit/glpi-dashboard/internal/names"
	"github.com/itsmkit/glpi-dashboard/internal/service"
)

type stubSearcher struct {
	records []glpi.Record
	totals  map[int]int
	err     error
}

func (s *stubSearcher) SearchIter(_ context.Context, _ string, _ glpi.SearchOptions) iter.Seq2[glpi.Record, error] {
	return func(yield func(glpi.Record, error) bool) {
		if s.err != nil {
			yield(nil, s.err)
			return
		}
		for _, rec := range s.records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (s *stubSearcher) Search(ctx context.Context, itemType string, opts glpi.SearchOptions) ([]glpi.Record, error) {
	var out []glpi.Record
	for rec, err := range s.SearchIter(ctx, itemType, opts) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *stubSearcher) TotalCount(_ context.Context, _ string, criteria []glpi.Criterion) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	for _, c := range criteria {
		if c.Field == glpi.FieldStatus {
			status, _ := strconv.Atoi(c.Value)
			return s.totals[status], nil
		}
	}
	return 0, nil
}

type stubResolver struct {
	labels map[int]string
}

func (s *stubResolver) ResolveAll(_ context.Context, _ names.ItemSpec, ids []int) map[int]names.Resolution {
	out := make(map[int]names.Resolution, len(ids))
	for _, id := range ids {
		out[id] = names.Resolution{Label: s.labels[id]}
	}
	return out
}

func newTestRouter(search *stubSearcher, resolver *stubResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if resolver == nil {
		resolver = &stubResolver{}
	}
	svc := service.New(search, resolver, cache.NewMemory(),
		service.Config{ResponseTTL: time.Minute, TechTopLimit: 20},
		logger.Nop(), nil)
	router := gin.New()
	NewHandlers(svc, logger.Nop()).RegisterRoutes(router)
	return router
}

func doGet(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestEntityRankingEndpoint(t *testing.T) {
	search := &stubSearcher{records: []glpi.Record{
		{glpi.FieldKey(glpi.FieldEntity): "3"},
		{glpi.FieldKey(glpi.FieldEntity): "3"},
		{glpi.FieldKey(glpi.FieldEntity): "7"},
	}}
	resolver := &stubResolver{labels: map[int]string{3: "HQ", 7: "Branch"}}
	router := newTestRouter(search, resolver)

	rec := doGet(t, router, "/api/v1/maintenance/rankings/entities?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []service.EntityRank
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, service.EntityRank{EntityName: "HQ", TicketCount: 2}, body[0])
	assert.Equal(t, service.EntityRank{EntityName: "Branch", TicketCount: 1}, body[1])
}

func TestRankingRequiresDates(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, nil)

	rec := doGet(t, router, "/api/v1/maintenance/rankings/entities")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")

	rec = doGet(t, router, "/api/v1/maintenance/rankings/entities?from=01-01-2024&to=2024-01-31")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllTimeRankingNeedsNoDates(t *testing.T) {
	search := &stubSearcher{records: []glpi.Record{
		{glpi.FieldKey(glpi.FieldCategory): "2"},
	}}
	resolver := &stubResolver{labels: map[int]string{2: "Hardware"}}
	router := newTestRouter(search, resolver)

	rec := doGet(t, router, "/api/v1/maintenance/rankings/categories/all-time?top=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hardware")
}

func TestUpstreamFailureMapsTo502(t *testing.T) {
	search := &stubSearcher{err: &glpi.NetworkError{Op: "search", Timeout: true, Err: context.DeadlineExceeded}}
	router := newTestRouter(search, nil)

	rec := doGet(t, router, "/api/v1/maintenance/rankings/entities?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UPSTREAM_ERROR", body["code"])
	assert.Equal(t, "upstream communication failure", body["error"])
}

func TestUnclassifiedFailureMapsTo500(t *testing.T) {
	search := &stubSearcher{err: errors.New("boom")}
	router := newTestRouter(search, nil)

	rec := doGet(t, router, "/api/v1/maintenance/rankings/entities?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestStatsEndpoint(t *testing.T) {
	search := &stubSearcher{totals: map[int]int{
		glpi.StatusNew:    2,
		glpi.StatusSolved: 3,
		glpi.StatusClosed: 4,
	}}
	router := newTestRouter(search, nil)

	rec := doGet(t, router, "/api/v1/maintenance/stats?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var body service.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.New)
	assert.Equal(t, 7, body.Resolved)
}

func TestStatusTotalsEndpoint(t *testing.T) {
	search := &stubSearcher{totals: map[int]int{
		glpi.StatusAssigned: 5,
		glpi.StatusPending:  2,
	}}
	router := newTestRouter(search, nil)

	rec := doGet(t, router, "/api/v1/maintenance/status-totals")
	require.Equal(t, http.StatusOK, rec.Code)

	var body service.StatusTotals
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.InProgress)
	assert.Equal(t, 7, body.Unsolved)
}

func TestNewTicketsEndpoint(t *testing.T) {
	search := &stubSearcher{records: []glpi.Record{{
		glpi.FieldKey(glpi.FieldID):        float64(12),
		glpi.FieldKey(glpi.FieldTitle):     "Broken screen",
		glpi.FieldKey(glpi.FieldRequester): "Maria Silva",
		glpi.FieldKey(glpi.FieldCreated):   "2024-03-01 08:00:00",
		glpi.FieldKey(glpi.FieldEntity):    "HQ",
	}}}
	router := newTestRouter(search, nil)

	rec := doGet(t, router, "/api/v1/maintenance/tickets/new?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []service.NewTicket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Broken screen", body[0].Title)
	assert.Equal(t, "01/03/2024 08:00", body[0].CreatedAt)
}

func TestNewTicketsInvalidLimit(t *testing.T) {
	router := newTestRouter(&stubSearcher{}, nil)

	rec := doGet(t, router, "/api/v1/maintenance/tickets/new?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTechnicianRankingIncludeUnassigned(t *testing.T) {
	search := &stubSearcher{records: []glpi.Record{
		{glpi.FieldKey(glpi.FieldTech): nil, glpi.FieldKey(glpi.FieldStatus): float64(glpi.StatusPending)},
		{glpi.FieldKey(glpi.FieldTech): "4", glpi.FieldKey(glpi.FieldStatus): float64(glpi.StatusAssigned)},
	}}
	resolver := &stubResolver{labels: map[int]string{4: "Ana Costa"}}
	router := newTestRouter(search, resolver)

	rec := doGet(t, router, "/api/v1/maintenance/rankings/technicians?from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Unassigned")

	rec = doGet(t, router, "/api/v1/maintenance/rankings/technicians?from=2024-01-01&to=2024-01-31&include_unassigned=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unassigned")
	assert.Contains(t, rec.Body.String(), "Ana Costa")
}
