package catalog

import (
	"net/url"
	"strconv"
	"strings"
)

// Endpoint selects which remote listing path serves a request.
type Endpoint int

const (
	// Listing is the unfiltered paginated path.
	Listing Endpoint = iota
	// Search is the filtered path, used whenever a filter or search is active.
	Search
)

// String returns "listing" or "search".
func (e Endpoint) String() string {
	if e == Search {
		return "search"
	}
	return "listing"
}

// MarshalText implements encoding.TextMarshaler.
func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Request is a compiled query state.
type Request struct {
	Endpoint Endpoint
	Query    url.Values
	Page     int
	PageSize int
}

// Compile maps s to the remote API parameters using table. It is pure:
// the same state and table always produce the same request.
//
// Filters that table does not define are ignored.
func Compile(s QueryState, table *FilterTable) Request {
	q := url.Values{}
	q.Set("page", strconv.Itoa(s.Page))
	q.Set("limit", strconv.Itoa(s.PageSize))

	if s.SortBy != "" {
		q.Set("sortBy", s.SortBy)
		order := s.SortOrder
		if !order.Valid() {
			order = SortAsc
		}
		q.Set("sortOrder", string(order))
	}

	endpoint := Listing
	if term := strings.TrimSpace(s.SearchTerm); term != "" {
		q.Set("searchTerm", term)
		endpoint = Search
	}

	if table != nil {
		for _, key := range table.order {
			v, ok := s.Filters[key]
			if !ok {
				continue
			}
			spec := table.specs[key]
			if !spec.active(v) {
				continue
			}
			endpoint = Search
			switch spec.Kind {
			case KindSet:
				for _, api := range spec.selected(v) {
					q.Add(spec.Param, api)
				}
			case KindRange:
				q.Set(spec.Param+"Min", formatFloat(v.Min))
				q.Set(spec.Param+"Max", formatFloat(v.Max))
			case KindBool:
				q.Set(spec.Param, "true")
			}
		}
	}

	return Request{Endpoint: endpoint, Query: q, Page: s.Page, PageSize: s.PageSize}
}

// ChooseEndpoint returns the endpoint Compile would pick for s.
func ChooseEndpoint(s QueryState, table *FilterTable) Endpoint {
	return Compile(s, table).Endpoint
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
