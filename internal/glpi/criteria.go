package glpi

import (
	"fmt"
	"slices"
)

// Search-engine field IDs for the Ticket item type.
const (
	FieldID        = 2
	FieldTitle     = 1
	FieldStatus    = 12
	FieldCreated   = 15
	FieldTech      = 5
	FieldRequester = 4
	FieldEntity    = 80
	FieldCategory  = 7
)

// Ticket status values.
const (
	StatusNew      = 1
	StatusAssigned = 2
	StatusPlanned  = 3
	StatusPending  = 4
	StatusSolved   = 5
	StatusClosed   = 6
)

// StatusLabels maps status values to the API-facing names used by the
// per-status totals endpoint.
var StatusLabels = map[string]int{
	"new":      StatusNew,
	"assigned": StatusAssigned,
	"planned":  StatusPlanned,
	"pending":  StatusPending,
	"solved":   StatusSolved,
	"closed":   StatusClosed,
}

// Criterion is one entry of a search criteria chain. Link is empty on the
// first entry and "AND" on every subsequent one.
type Criterion struct {
	Link       string
	Field      int
	SearchType string
	Value      string
}

// link returns the connective for appending to an existing chain.
func link(existing []Criterion) string {
	if len(existing) == 0 {
		return ""
	}
	return "AND"
}

// AddDateRange returns a new chain extended with morethan/lessthan criteria
// on the creation date; the input chain is never mutated. Bare dates gain a
// time-of-day component so the range spans whole days; values that already
// carry a time pass through untouched. Empty bounds append nothing.
func AddDateRange(criteria []Criterion, from, to string) []Criterion {
	out := slices.Clone(criteria)
	if from != "" {
		out = append(out, Criterion{
			Link:       link(out),
			Field:      FieldCreated,
			SearchType: "morethan",
			Value:      normalizeDate(from, "00:00:00"),
		})
	}
	if to != "" {
		out = append(out, Criterion{
			Link:       link(out),
			Field:      FieldCreated,
			SearchType: "lessthan",
			Value:      normalizeDate(to, "23:59:59"),
		})
	}
	return out
}

// AddStatus returns a new chain extended with an equality criterion on the
// ticket status; the input chain is never mutated.
func AddStatus(criteria []Criterion, status int) []Criterion {
	return append(slices.Clone(criteria), Criterion{
		Link:       link(criteria),
		Field:      FieldStatus,
		SearchType: "equals",
		Value:      fmt.Sprintf("%d", status),
	})
}

func normalizeDate(value, boundary string) string {
	if len(value) == 10 {
		return value + " " + boundary
	}
	return value
}
