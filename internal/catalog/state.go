// Package catalog holds the server-driven pagination, filter and sort state
// shared by the admin inventory grid and the public catalog grid: the query
// state store, the compiler that turns it into remote API parameters, and the
// controller that debounces changes into fetches and normalizes responses.
package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// SortOrder is the direction passed to the remote API.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether o is asc or desc.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// FilterKind distinguishes the three filter value shapes.
type FilterKind int

const (
	KindSet FilterKind = iota
	KindRange
	KindBool
)

// String returns the config spelling of k.
func (k FilterKind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindRange:
		return "range"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k FilterKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FilterKind) UnmarshalText(b []byte) error {
	v, ok := ParseFilterKind(string(b))
	if !ok {
		return fmt.Errorf("unknown filter kind %q", b)
	}
	*k = v
	return nil
}

// ParseFilterKind maps a config spelling back to a FilterKind.
func ParseFilterKind(s string) (FilterKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "set", "":
		return KindSet, true
	case "range":
		return KindRange, true
	case "bool", "boolean":
		return KindBool, true
	default:
		return 0, false
	}
}

// FilterValue is one filter field's current selection.
type FilterValue struct {
	Kind FilterKind `json:"kind"`
	// Values is the inclusion list for KindSet, in selection order.
	Values []string `json:"values,omitempty"`
	// Min and Max bound a KindRange filter.
	Min float64 `json:"min,omitempty"`
	Max float64 `json:"max,omitempty"`
	// On is the KindBool flag.
	On bool `json:"on,omitempty"`
}

// SetOf builds an inclusion-list filter. Duplicates are dropped, first
// occurrence wins, so selection order is preserved.
func SetOf(values ...string) FilterValue {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return FilterValue{Kind: KindSet, Values: out}
}

// RangeOf builds a numeric range filter.
func RangeOf(lo, hi float64) FilterValue {
	return FilterValue{Kind: KindRange, Min: lo, Max: hi}
}

// Flag builds a boolean filter.
func Flag(on bool) FilterValue {
	return FilterValue{Kind: KindBool, On: on}
}

// Equal compares two filter values. Set membership is compared in order,
// because the compiler emits values in selection order.
func (v FilterValue) Equal(o FilterValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindSet:
		return slices.Equal(v.Values, o.Values)
	case KindRange:
		return v.Min == o.Min && v.Max == o.Max
	default:
		return v.On == o.On
	}
}

func (v FilterValue) clone() FilterValue {
	v.Values = slices.Clone(v.Values)
	return v
}

// Filters maps a UI filter key to its value.
type Filters map[string]FilterValue

// Clone returns a deep copy of f.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v.clone()
	}
	return out
}

// Equal reports whether f and o hold the same keys with equal values.
func (f Filters) Equal(o Filters) bool {
	if len(f) != len(o) {
		return false
	}
	for k, v := range f {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// QueryState is what the view currently wants displayed.
type QueryState struct {
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	SortBy     string    `json:"sort_by,omitempty"`
	SortOrder  SortOrder `json:"sort_order,omitempty"`
	SearchTerm string    `json:"search_term,omitempty"`
	Filters    Filters   `json:"filters,omitempty"`
}

// Clone returns a deep copy of s.
func (s QueryState) Clone() QueryState {
	s.Filters = s.Filters.Clone()
	return s
}

// Equal reports whether s and o describe the same request intent.
func (s QueryState) Equal(o QueryState) bool {
	return s.Page == o.Page &&
		s.PageSize == o.PageSize &&
		s.SortBy == o.SortBy &&
		s.SortOrder == o.SortOrder &&
		s.SearchTerm == o.SearchTerm &&
		s.Filters.Equal(o.Filters)
}

// Store holds the mutable query state of one view. Every setter reports
// whether the state actually changed so the caller knows whether a fetch is
// due. Store does not validate or clamp its inputs and is not safe for
// concurrent use on its own; Controller serializes access to it.
type Store struct {
	state    QueryState
	defaults Filters
}

// NewStore creates a store starting from initial. defaults are the filter
// values InitializeFromExternalParams merges route parameters over.
func NewStore(initial QueryState, defaults Filters) *Store {
	initial = initial.Clone()
	if initial.Page < 1 {
		initial.Page = 1
	}
	if initial.Filters == nil {
		initial.Filters = defaults.Clone()
	}
	return &Store{state: initial, defaults: defaults.Clone()}
}

// State returns a copy of the current state.
func (s *Store) State() QueryState {
	return s.state.Clone()
}

// SetPage sets the page unconditionally; bounds are the caller's concern.
func (s *Store) SetPage(n int) bool {
	return s.apply(func(st *QueryState) { st.Page = n })
}

// SetPageSize sets the page size and resets to page 1.
func (s *Store) SetPageSize(n int) bool {
	return s.apply(func(st *QueryState) {
		st.PageSize = n
		st.Page = 1
	})
}

// SetSort sets the sort column and direction. The page is kept.
func (s *Store) SetSort(field string, order SortOrder) bool {
	return s.apply(func(st *QueryState) {
		st.SortBy = field
		st.SortOrder = order
	})
}

// SetSearchTerm sets the free-text search and resets to page 1.
func (s *Store) SetSearchTerm(term string) bool {
	return s.apply(func(st *QueryState) {
		st.SearchTerm = term
		st.Page = 1
	})
}

// SetFilters replaces the whole filter map and resets to page 1.
func (s *Store) SetFilters(f Filters) bool {
	f = f.Clone()
	return s.apply(func(st *QueryState) {
		st.Filters = f
		st.Page = 1
	})
}

// InitializeFromExternalParams merges route-derived filters over the
// defaults and resets to page 1. Repeating a call with the same params
// leaves the state unchanged and reports false.
func (s *Store) InitializeFromExternalParams(partial Filters) bool {
	merged := s.defaults.Clone()
	if merged == nil {
		merged = make(Filters, len(partial))
	}
	for k, v := range partial {
		merged[k] = v.clone()
	}
	return s.apply(func(st *QueryState) {
		st.Filters = merged
		st.Page = 1
	})
}

func (s *Store) apply(fn func(*QueryState)) bool {
	next := s.state.Clone()
	fn(&next)
	if next.Equal(s.state) {
		return false
	}
	s.state = next
	return true
}
