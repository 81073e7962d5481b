package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/names"
)

// NewTicket is one row of the newest-tickets listing.
type NewTicket struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Requester string `json:"requester"`
	CreatedAt string `json:"created_at"`
	Entity    string `json:"entity"`
}

const createdAtLayout = "02/01/2006 15:04"

// NewTickets lists the most recently opened status-new tickets, newest
// first. Dropdown fields arrive expanded so entity comes back as a name;
// requesters that still arrive as IDs go through name resolution.
func (s *Service) NewTickets(ctx context.Context, limit int) ([]NewTicket, error) {
	key := fmt.Sprintf("tickets:new:%d", limit)
	return fetchCached(ctx, s, key, func(ctx context.Context) ([]NewTicket, error) {
		return s.newTickets(ctx, limit)
	})
}

func (s *Service) newTickets(ctx context.Context, limit int) ([]NewTicket, error) {
	records, err := s.search.Search(ctx, "Ticket", glpi.SearchOptions{
		Criteria: glpi.AddStatus(nil, glpi.StatusNew),
		ForceDisplay: []int{
			glpi.FieldTitle, glpi.FieldID, glpi.FieldRequester,
			glpi.FieldCreated, glpi.FieldEntity,
		},
		ExpandDropdown: true,
		Extra:          map[string]string{"is_recursive": "1"},
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []NewTicket{}, nil
	}

	idKey := glpi.FieldKey(glpi.FieldID)
	sort.SliceStable(records, func(i, j int) bool {
		a, _ := glpi.FirstNumericID(records[i].Field(idKey))
		b, _ := glpi.FirstNumericID(records[j].Field(idKey))
		return a > b
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	requesterKey := glpi.FieldKey(glpi.FieldRequester)
	var requesterIDs []int
	for _, rec := range records {
		if id, ok := glpi.FirstNumericID(rec.Field(requesterKey)); ok && id > 0 {
			requesterIDs = append(requesterIDs, id)
		}
	}
	resolved := s.names.ResolveAll(ctx, names.User, requesterIDs)

	tickets := make([]NewTicket, 0, len(records))
	for _, rec := range records {
		id, _ := glpi.FirstNumericID(rec.Field(idKey))
		tickets = append(tickets, NewTicket{
			ID:        id,
			Title:     orDefault(rec.String(glpi.FieldKey(glpi.FieldTitle)), "Untitled"),
			Requester: s.requesterLabel(rec.Field(requesterKey), resolved),
			CreatedAt: formatCreated(rec.String(glpi.FieldKey(glpi.FieldCreated))),
			Entity:    orDefault(rec.String(glpi.FieldKey(glpi.FieldEntity)), "No entity"),
		})
	}
	return tickets, nil
}

// requesterLabel prefers an already-expanded name over resolution; a bare
// ID goes through the resolver, and anything else degrades to a default.
func (s *Service) requesterLabel(raw any, resolved map[int]names.Resolution) string {
	if str, ok := raw.(string); ok {
		if _, err := strconv.Atoi(str); err != nil && str != "" {
			return str
		}
	}
	if id, ok := glpi.FirstNumericID(raw); ok && id > 0 {
		if res, ok := resolved[id]; ok {
			return res.Display(names.User, id)
		}
	}
	return "Not provided"
}

// formatCreated renders an upstream "2006-01-02 15:04:05" timestamp in the
// dashboard's day-first form, degrading to a prefix of the raw value.
func formatCreated(raw string) string {
	if raw == "" {
		return ""
	}
	created, err := time.Parse(time.DateTime, raw)
	if err != nil {
		if len(raw) > 16 {
			return raw[:16]
		}
		return raw
	}
	return created.Format(createdAtLayout)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
