package view

import (
	"net/url"
	"slices"
	"strconv"

	"github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// pageWindow is how many numbered page buttons a grid shows.
const pageWindow = 5

// Grid is the template model of a mounted session.
type Grid struct {
	SessionID string
	catalog.Snapshot
	// Pages are the numbered page buttons around the current page.
	Pages []int
	// Params renders the current query state as URL parameters, without page.
	Params url.Values
	Fields []FilterField
}

// FilterField is one control of the filter panel.
type FilterField struct {
	catalog.FilterSpec
	Value catalog.FilterValue
}

// Selected reports whether option is part of a set filter.
func (f FilterField) Selected(option string) bool {
	return slices.Contains(f.Value.Values, option)
}

// NewGrid builds the template model for sess.
func NewGrid(sess *Session, table *catalog.FilterTable) Grid {
	snap := sess.Controller.Snapshot()

	params := pkg.FilterParams(snap.State.Filters, table)
	params.Set(pkg.FiltersMarker, "1")
	params.Set("page_size", strconv.Itoa(snap.State.PageSize))
	if snap.State.SortBy != "" {
		params.Set("sort", snap.State.SortBy+":"+string(snap.State.SortOrder))
	}
	if snap.State.SearchTerm != "" {
		params.Set("search", snap.State.SearchTerm)
	}

	fields := make([]FilterField, 0, len(table.Keys()))
	for _, key := range table.Keys() {
		spec, _ := table.Spec(key)
		fields = append(fields, FilterField{FilterSpec: spec, Value: snap.State.Filters[key]})
	}

	current := snap.Pagination.CurrentPage
	if current == 0 {
		current = snap.State.Page
	}
	return Grid{
		SessionID: sess.ID,
		Snapshot:  snap,
		Pages:     PageWindow(current, snap.Pagination.TotalPages, pageWindow),
		Params:    params,
		Fields:    fields,
	}
}

// PageURL returns base with the grid's parameters and the given page.
func (g Grid) PageURL(base string, page int) string {
	q := cloneValues(g.Params)
	q.Set("page", strconv.Itoa(page))
	return base + "?" + q.Encode()
}

// SortURL returns base with the grid sorted by field. Sorting by the current
// field flips the direction.
func (g Grid) SortURL(base, field string) string {
	q := cloneValues(g.Params)
	order := catalog.SortAsc
	if g.State.SortBy == field && g.State.SortOrder == catalog.SortAsc {
		order = catalog.SortDesc
	}
	q.Set("sort", field+":"+string(order))
	q.Set("page", strconv.Itoa(g.State.Page))
	return base + "?" + q.Encode()
}

// Query returns the parameters of the current page, for export links.
func (g Grid) Query() string {
	return g.Params.Encode()
}

// PageWindow returns up to width page numbers centered on current and
// clipped to [1, total].
func PageWindow(current, total, width int) []int {
	if total <= 0 || width <= 0 {
		return nil
	}
	current = min(max(current, 1), total)
	start := max(current-width/2, 1)
	end := min(start+width-1, total)
	start = max(end-width+1, 1)

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
