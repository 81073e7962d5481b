package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/logger"
	"github.com/itsmkit/glpi-dashboard/internal/names"
)

// EntityRank is one row of the per-entity ticket ranking.
type EntityRank struct {
	EntityName  string `json:"entity_name"`
	TicketCount int    `json:"ticket_count"`
}

// CategoryRank is one row of the per-category ticket ranking.
type CategoryRank struct {
	CategoryName string `json:"category_name"`
	TicketCount  int    `json:"ticket_count"`
}

// TechnicianRank is one row of the per-technician ticket ranking.
type TechnicianRank struct {
	TechnicianName string `json:"technician_name"`
	TicketCount    int    `json:"ticket_count"`
}

// rankedItem is the dimension-agnostic ranking row the pipeline produces;
// the public methods map it onto the wire DTOs.
type rankedItem struct {
	Label string
	Count int
}

// dimension parametrizes the ranking pipeline per grouping attribute.
type dimension struct {
	// name labels metrics and logs.
	name string
	// field is the search-engine field the dimension groups by.
	field int
	// spec resolves surviving bucket IDs to labels.
	spec names.ItemSpec
	// placeholder labels the reserved "0" (unassigned/unknown) bucket.
	placeholder string
	// dropSentinel removes the "0" bucket instead of labeling it.
	dropSentinel bool
}

var (
	entityDim = dimension{
		name:        "entity",
		field:       glpi.FieldEntity,
		spec:        names.Entity,
		placeholder: "(no entity)",
	}
	categoryDim = dimension{
		name:        "category",
		field:       glpi.FieldCategory,
		spec:        names.Category,
		placeholder: "(no category)",
	}
	technicianDim = dimension{
		name:        "technician",
		field:       glpi.FieldTech,
		spec:        names.User,
		placeholder: "Unassigned",
	}
)

// RankEntities ranks ticket volume per entity within a creation-date range.
func (s *Service) RankEntities(ctx context.Context, from, to string, top int) ([]EntityRank, error) {
	key := fmt.Sprintf("rank:entity:%s:%s:%d", from, to, top)
	items, err := fetchCached(ctx, s, key, func(ctx context.Context) ([]rankedItem, error) {
		return s.rank(ctx, entityDim, glpi.AddDateRange(nil, from, to), top)
	})
	if err != nil {
		return nil, err
	}
	ranks := make([]EntityRank, len(items))
	for i, it := range items {
		ranks[i] = EntityRank{EntityName: it.Label, TicketCount: it.Count}
	}
	return ranks, nil
}

// RankEntitiesAllTime ranks ticket volume per entity over all history.
func (s *Service) RankEntitiesAllTime(ctx context.Context, top int) ([]EntityRank, error) {
	return s.RankEntities(ctx, "", "", top)
}

// RankCategories ranks ticket volume per category within a date range.
func (s *Service) RankCategories(ctx context.Context, from, to string, top int) ([]CategoryRank, error) {
	key := fmt.Sprintf("rank:category:%s:%s:%d", from, to, top)
	items, err := fetchCached(ctx, s, key, func(ctx context.Context) ([]rankedItem, error) {
		return s.rank(ctx, categoryDim, glpi.AddDateRange(nil, from, to), top)
	})
	if err != nil {
		return nil, err
	}
	ranks := make([]CategoryRank, len(items))
	for i, it := range items {
		ranks[i] = CategoryRank{CategoryName: it.Label, TicketCount: it.Count}
	}
	return ranks, nil
}

// RankCategoriesAllTime ranks ticket volume per category over all history.
func (s *Service) RankCategoriesAllTime(ctx context.Context, top int) ([]CategoryRank, error) {
	return s.RankCategories(ctx, "", "", top)
}

// RankTechnicians ranks assigned ticket volume per technician within a date
// range. The unassigned bucket is dropped unless includeUnassigned is set,
// and the result size is clamped by configuration.
func (s *Service) RankTechnicians(ctx context.Context, from, to string, top int, includeUnassigned bool) ([]TechnicianRank, error) {
	if s.cfg.TechTopLimit > 0 && (top <= 0 || top > s.cfg.TechTopLimit) {
		top = s.cfg.TechTopLimit
	}
	dim := technicianDim
	dim.dropSentinel = !includeUnassigned

	key := fmt.Sprintf("rank:technician:%s:%s:%d:%t", from, to, top, includeUnassigned)
	items, err := fetchCached(ctx, s, key, func(ctx context.Context) ([]rankedItem, error) {
		return s.rank(ctx, dim, glpi.AddDateRange(nil, from, to), top)
	})
	if err != nil {
		return nil, err
	}
	ranks := make([]TechnicianRank, len(items))
	for i, it := range items {
		ranks[i] = TechnicianRank{TechnicianName: it.Label, TicketCount: it.Count}
	}
	return ranks, nil
}

// rank is the shared pipeline: stream, bucket, sort, truncate, resolve.
func (s *Service) rank(ctx context.Context, dim dimension, criteria []glpi.Criterion, top int) ([]rankedItem, error) {
	started := time.Now()

	counts, err := s.countByDimension(ctx, dim, criteria)
	if err != nil {
		return nil, err
	}

	items := s.assemble(ctx, dim, counts, top)

	if s.metrics != nil {
		s.metrics.AggregationDuration.WithLabelValues(dim.name).Observe(time.Since(started).Seconds())
	}
	s.log.Debug("ranking computed",
		logger.String("dimension", dim.name),
		logger.Int("buckets", len(counts)),
		logger.Int("returned", len(items)),
		logger.Duration("elapsed", time.Since(started)))
	return items, nil
}

// countByDimension folds the lazy record stream into per-key counts.
// Projection is kept to the dimension field (plus status for the
// technician exclusion rule) so pages stay small.
func (s *Service) countByDimension(ctx context.Context, dim dimension, criteria []glpi.Criterion) (map[string]int, error) {
	opts := glpi.SearchOptions{
		Criteria:     criteria,
		ForceDisplay: []int{dim.field},
		Extra:        map[string]string{"display_type": "2", "is_recursive": "1"},
	}
	excludeUnassignedNew := dim.name == technicianDim.name && !s.cfg.CountUnassignedNew
	if excludeUnassignedNew {
		opts.ForceDisplay = append(opts.ForceDisplay, glpi.FieldStatus)
	}

	fieldKey := glpi.FieldKey(dim.field)
	statusKey := glpi.FieldKey(glpi.FieldStatus)

	counts := make(map[string]int)
	scanned := 0
	for rec, err := range s.search.SearchIter(ctx, "Ticket", opts) {
		if err != nil {
			return nil, err
		}
		scanned++

		key := glpi.DimensionKey(rec.Field(fieldKey))
		// An unassigned ticket that is still new is nobody's workload;
		// unassigned tickets in later statuses still count into "0".
		if excludeUnassignedNew && key == "0" {
			if status, ok := glpi.FirstNumericID(rec.Field(statusKey)); ok && status == glpi.StatusNew {
				continue
			}
		}
		counts[key]++
	}

	if s.metrics != nil {
		s.metrics.RecordsScanned.WithLabelValues(dim.name).Add(float64(scanned))
	}
	return counts, nil
}

// assemble sorts buckets, truncates to top, resolves the survivors and
// sanitizes their labels.
func (s *Service) assemble(ctx context.Context, dim dimension, counts map[string]int, top int) []rankedItem {
	if dim.dropSentinel {
		delete(counts, "0")
	}

	buckets := make([]rankedItem, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, rankedItem{Label: key, Count: count})
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Count > buckets[j].Count })
	if top > 0 && len(buckets) > top {
		buckets = buckets[:top]
	}

	// Only the surviving buckets get name lookups, bounding resolution
	// cost to the result size regardless of dimension cardinality.
	var ids []int
	for _, b := range buckets {
		if b.Label == "0" {
			continue
		}
		if id, err := strconv.Atoi(b.Label); err == nil {
			ids = append(ids, id)
		}
	}
	resolved := s.names.ResolveAll(ctx, dim.spec, ids)

	items := make([]rankedItem, 0, len(buckets))
	for _, b := range buckets {
		label, ok := s.bucketLabel(dim, b.Label, resolved)
		if !ok {
			continue
		}
		items = append(items, rankedItem{Label: label, Count: b.Count})
	}
	return items
}

// bucketLabel maps a bucket key to its display label. The "0" sentinel maps
// to the dimension placeholder; numeric keys use their resolution; opaque
// non-numeric keys (already labels) pass through sanitization directly.
// A label that sanitizes to nothing drops the bucket entirely.
func (s *Service) bucketLabel(dim dimension, key string, resolved map[int]names.Resolution) (string, bool) {
	if key == "0" {
		return dim.placeholder, true
	}

	id, err := strconv.Atoi(key)
	if err != nil {
		return validLabel(key)
	}

	res, ok := resolved[id]
	if !ok {
		return validLabel(key)
	}
	return validLabel(res.Display(dim.spec, id))
}

// validLabel decodes HTML escapes (twice, for double-encoded payloads) and
// trims; labels normalizing to empty, "none" or "null" are rejected.
func validLabel(raw string) (string, bool) {
	label := strings.TrimSpace(html.UnescapeString(html.UnescapeString(raw)))
	switch strings.ToLower(label) {
	case "", "none", "null":
		return "", false
	}
	return label, true
}
