package pkg

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/simp-lee/gemfront/internal/catalog"
)

// FiltersMarker is the hidden form field that says the filter panel was
// submitted. With it, an absent filter key means "cleared", not "unchanged".
const FiltersMarker = "filters"

// reservedParams lists query parameter names used for paging, sorting and
// search, never for filtering.
var reservedParams = map[string]bool{
	"page":        true,
	"page_size":   true,
	"sort":        true,
	"sort_by":     true,
	"sort_order":  true,
	"search":      true,
	"q":           true,
	"wait":        true,
	FiltersMarker: true,
}

// validFieldName matches only alphanumeric characters and underscores.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// QueryOptions bounds what ParseQuery accepts.
type QueryOptions struct {
	MaxPageSize int
	// SortFields lists the columns a caller may sort by. Empty allows any
	// well-formed field name.
	SortFields []string
}

// QueryPatch is a partial query state update. Nil fields were not present in
// the request and leave the current state alone.
type QueryPatch struct {
	Page       *int               `json:"page,omitempty"`
	PageSize   *int               `json:"page_size,omitempty"`
	SortBy     *string            `json:"sort_by,omitempty"`
	SortOrder  *catalog.SortOrder `json:"sort_order,omitempty"`
	SearchTerm *string            `json:"search_term,omitempty"`
	Filters    catalog.Filters    `json:"filters,omitempty"`
}

// Empty reports whether p changes nothing.
func (p QueryPatch) Empty() bool {
	return p.Page == nil && p.PageSize == nil && p.SortBy == nil &&
		p.SortOrder == nil && p.SearchTerm == nil && p.Filters == nil
}

// QueryTarget is the part of a catalog controller a patch is applied to.
type QueryTarget interface {
	State() catalog.QueryState
	SetFilters(f catalog.Filters)
	SetSearchTerm(term string)
	SetPageSize(n int)
	SetSort(field string, order catalog.SortOrder)
	SetPage(n int)
}

// ParseQuery extracts a QueryPatch from URL query parameters.
//
// Unparseable page numbers, unknown sort fields and malformed filter values
// are ignored rather than rejected. Page sizes are clamped to
// [1, MaxPageSize]. Filters are keyed by UI filter name:
//
//	shape=Round&shape=Oval   or  shape=Round,Oval   set filter
//	carat_min=0.5&carat_max=2 or carat=0.5..2        range filter
//	certified=true                                   bool filter
//
// When any filter parameter (or FiltersMarker) is present, the returned
// Filters is the table defaults overlaid with the parsed values.
func ParseQuery(q url.Values, table *catalog.FilterTable, opts QueryOptions) QueryPatch {
	var p QueryPatch

	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil && n >= 1 {
		p.Page = &n
	}

	if raw := strings.TrimSpace(q.Get("page_size")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			n = max(n, 1)
			if opts.MaxPageSize > 0 && n > opts.MaxPageSize {
				n = opts.MaxPageSize
			}
			p.PageSize = &n
		}
	}

	parseSort(q, opts.SortFields, &p)

	if q.Has("search") {
		term := strings.TrimSpace(q.Get("search"))
		p.SearchTerm = &term
	} else if q.Has("q") {
		term := strings.TrimSpace(q.Get("q"))
		p.SearchTerm = &term
	}

	if table != nil {
		p.Filters = parseFilters(q, table)
	}
	return p
}

// parseSort accepts "sort=field:dir" or the pair sort_by/sort_order.
func parseSort(q url.Values, allowed []string, p *QueryPatch) {
	field := strings.TrimSpace(q.Get("sort_by"))
	dir := strings.TrimSpace(q.Get("sort_order"))
	if raw := strings.TrimSpace(q.Get("sort")); raw != "" {
		field, dir, _ = strings.Cut(raw, ":")
		field = strings.TrimSpace(field)
		dir = strings.TrimSpace(dir)
	}

	if field != "" && validFieldName.MatchString(field) && (len(allowed) == 0 || slices.Contains(allowed, field)) {
		p.SortBy = &field
	}
	if order := catalog.SortOrder(strings.ToLower(dir)); order.Valid() {
		p.SortOrder = &order
	}
}

func parseFilters(q url.Values, table *catalog.FilterTable) catalog.Filters {
	parsed := make(catalog.Filters)
	present := q.Has(FiltersMarker)

	for _, key := range table.Keys() {
		if reservedParams[key] {
			continue
		}
		spec, _ := table.Spec(key)
		switch spec.Kind {
		case catalog.KindRange:
			lo, hi := spec.Min, spec.Max
			found := false
			if raw := strings.TrimSpace(q.Get(key)); raw != "" {
				if v, err := ParseFilterValue(spec, raw); err == nil {
					lo, hi, found = v.Min, v.Max, true
				}
			}
			if n, err := strconv.ParseFloat(strings.TrimSpace(q.Get(key+"_min")), 64); err == nil {
				lo, found = n, true
			}
			if n, err := strconv.ParseFloat(strings.TrimSpace(q.Get(key+"_max")), 64); err == nil {
				hi, found = n, true
			}
			if found && lo <= hi {
				parsed[key] = catalog.RangeOf(lo, hi)
			}
		default:
			raws, ok := q[key]
			if !ok {
				continue
			}
			if v, err := ParseFilterValue(spec, strings.Join(raws, ",")); err == nil {
				parsed[key] = v
			}
		}
	}

	if len(parsed) == 0 && !present {
		return nil
	}
	return MergeFilters(table.Defaults(), parsed)
}

// ParseFilterValue parses the textual form of one filter value:
// comma-separated values for a set, "lo..hi" for a range, and
// true/false (1/0, on/off, yes/no) for a flag.
func ParseFilterValue(spec catalog.FilterSpec, raw string) (catalog.FilterValue, error) {
	raw = strings.TrimSpace(raw)
	switch spec.Kind {
	case catalog.KindSet:
		var values []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
		return catalog.SetOf(values...), nil

	case catalog.KindRange:
		loRaw, hiRaw, ok := strings.Cut(raw, "..")
		if !ok {
			return catalog.FilterValue{}, fmt.Errorf("filter %q: range must look like min..max, got %q", spec.Key, raw)
		}
		lo, hi := spec.Min, spec.Max
		if s := strings.TrimSpace(loRaw); s != "" {
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return catalog.FilterValue{}, fmt.Errorf("filter %q: invalid lower bound %q", spec.Key, s)
			}
			lo = n
		}
		if s := strings.TrimSpace(hiRaw); s != "" {
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return catalog.FilterValue{}, fmt.Errorf("filter %q: invalid upper bound %q", spec.Key, s)
			}
			hi = n
		}
		if lo > hi {
			return catalog.FilterValue{}, fmt.Errorf("filter %q: lower bound %v is greater than upper bound %v", spec.Key, lo, hi)
		}
		return catalog.RangeOf(lo, hi), nil

	case catalog.KindBool:
		switch strings.ToLower(raw) {
		case "true", "1", "on", "yes":
			return catalog.Flag(true), nil
		case "false", "0", "off", "no", "":
			return catalog.Flag(false), nil
		}
		return catalog.FilterValue{}, fmt.Errorf("filter %q: invalid flag %q", spec.Key, raw)
	}
	return catalog.FilterValue{}, fmt.Errorf("filter %q: unknown kind %s", spec.Key, spec.Kind)
}

// MergeFilters returns base overlaid with overlay. Neither input is modified.
func MergeFilters(base, overlay catalog.Filters) catalog.Filters {
	out := base.Clone()
	if out == nil {
		out = make(catalog.Filters, len(overlay))
	}
	for k, v := range overlay.Clone() {
		out[k] = v
	}
	return out
}

// FilterParams is the inverse of ParseQuery for filters: it renders the
// active values of f as query parameters, e.g. for pagination links.
func FilterParams(f catalog.Filters, table *catalog.FilterTable) url.Values {
	v := url.Values{}
	for _, key := range table.Keys() {
		spec, _ := table.Spec(key)
		val, ok := f[key]
		if !ok {
			continue
		}
		switch spec.Kind {
		case catalog.KindSet:
			for _, s := range val.Values {
				v.Add(key, s)
			}
		case catalog.KindRange:
			if val.Min != spec.Min || val.Max != spec.Max {
				v.Set(key+"_min", strconv.FormatFloat(val.Min, 'f', -1, 64))
				v.Set(key+"_max", strconv.FormatFloat(val.Max, 'f', -1, 64))
			}
		case catalog.KindBool:
			if val.On {
				v.Set(key, "true")
			}
		}
	}
	return v
}

// Apply feeds p into t in a fixed order: filters, search, page size, sort,
// page. The filter, search and page size setters reset to page 1, so an
// explicit page in the same patch is applied last to win.
func Apply(t QueryTarget, p QueryPatch) {
	if p.Filters != nil {
		t.SetFilters(p.Filters)
	}
	if p.SearchTerm != nil {
		t.SetSearchTerm(*p.SearchTerm)
	}
	if p.PageSize != nil {
		t.SetPageSize(*p.PageSize)
	}
	if p.SortBy != nil || p.SortOrder != nil {
		cur := t.State()
		field, order := cur.SortBy, cur.SortOrder
		if p.SortBy != nil {
			field = *p.SortBy
		}
		if p.SortOrder != nil {
			order = *p.SortOrder
		}
		if order == "" {
			order = catalog.SortAsc
		}
		t.SetSort(field, order)
	}
	if p.Page != nil {
		t.SetPage(*p.Page)
	}
}
