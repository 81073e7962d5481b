package glpi

import (
	"fmt"
	"net/url"
)

// SearchOptions shape a single search request beyond its criteria chain.
type SearchOptions struct {
	Criteria       []Criterion
	ForceDisplay   []int
	Sort           int
	Order          string // "ASC" or "DESC"
	ExpandDropdown bool
	// UIDCols keys response rows by field UID ("Entity.completename")
	// instead of numeric field ID ("80").
	UIDCols bool
	// Extra holds passthrough parameters such as display_type or
	// is_recursive.
	Extra map[string]string
	Range string // "start-end", empty for the default window
}

// buildSearchParams renders criteria and display options into the indexed
// query-parameter form the search engine expects.
func buildSearchParams(opts SearchOptions) url.Values {
	params := url.Values{}
	for i, c := range opts.Criteria {
		if c.Link != "" {
			params.Set(fmt.Sprintf("criteria[%d][link]", i), c.Link)
		}
		params.Set(fmt.Sprintf("criteria[%d][field]", i), fmt.Sprintf("%d", c.Field))
		params.Set(fmt.Sprintf("criteria[%d][searchtype]", i), c.SearchType)
		params.Set(fmt.Sprintf("criteria[%d][value]", i), c.Value)
	}
	for i, f := range opts.ForceDisplay {
		params.Set(fmt.Sprintf("forcedisplay[%d]", i), fmt.Sprintf("%d", f))
	}
	if opts.Sort != 0 {
		params.Set("sort", fmt.Sprintf("%d", opts.Sort))
	}
	if opts.Order != "" {
		params.Set("order", opts.Order)
	}
	if opts.ExpandDropdown {
		params.Set("expand_dropdowns", "1")
	}
	if opts.UIDCols {
		params.Set("uid_cols", "1")
	}
	for k, v := range opts.Extra {
		params.Set(k, v)
	}
	if opts.Range != "" {
		params.Set("range", opts.Range)
	}
	return params
}

// maskSensitive redacts token-bearing headers for debug logging.
func maskSensitive(headers map[string]string) map[string]string {
	masked := make(map[string]string, len(headers))
	for k, v := range headers {
		switch k {
		case "Session-Token", "App-Token", "Authorization":
			if len(v) > 8 {
				masked[k] = v[:4] + "..." + v[len(v)-4:]
			} else {
				masked[k] = "***"
			}
		default:
			masked[k] = v
		}
	}
	return masked
}
