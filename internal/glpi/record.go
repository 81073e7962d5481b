package glpi

import (
	"strconv"
	"strings"
)

// Record is one row from a GLPI search response. Keys are numeric field IDs
// rendered as strings ("80"), or dotted field UIDs such as
// "Entity.completename" when uid_cols is enabled; values arrive as numbers,
// strings, or lists depending on the field.
type Record map[string]any

// FieldKey renders a numeric field ID as a response-row key.
func FieldKey(field int) string { return strconv.Itoa(field) }

// Field returns the raw value for key, or nil when absent.
func (r Record) Field(key string) any { return r[key] }

// String returns the value for key rendered as a string, or empty when the
// field is absent or nil. Lists render their first element.
func (r Record) String(key string) string {
	v := r[key]
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return ""
		}
		v = list[0]
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// FirstNumericID extracts a non-negative numeric identifier from a field
// value. Multi-valued fields (e.g. a ticket with several technicians)
// contribute their first element. Returns 0 and false when the value holds
// no usable ID, which callers treat as "unassigned".
func FirstNumericID(v any) (int, bool) {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return 0, false
		}
		v = list[0]
	}
	switch t := v.(type) {
	case float64:
		if t < 0 || t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// DimensionKey normalizes a grouping field value into a counting key.
// Numeric values (including numeric strings and the first element of a
// list) map to their decimal form; non-numeric non-empty strings pass
// through as opaque labels, which GLPI produces for some dropdown fields.
// Everything else collapses to "0", the unassigned bucket.
func DimensionKey(v any) string {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return "0"
		}
		v = list[0]
	}
	switch t := v.(type) {
	case nil:
		return "0"
	case float64:
		if id, ok := FirstNumericID(t); ok {
			return strconv.Itoa(id)
		}
		return "0"
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return "0"
		}
		if n, err := strconv.Atoi(s); err == nil {
			if n < 0 {
				return "0"
			}
			return strconv.Itoa(n)
		}
		return s
	default:
		return "0"
	}
}
