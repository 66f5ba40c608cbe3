package view

import (
	"github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// MountRequest is the body of POST /api/v1/views.
type MountRequest struct {
	Kind       string             `json:"kind" binding:"required"`
	PageSize   *int               `json:"page_size"`
	SortBy     *string            `json:"sort_by"`
	SortOrder  *catalog.SortOrder `json:"sort_order"`
	SearchTerm *string            `json:"search_term"`
	Filters    catalog.Filters    `json:"filters"`
}

// Patch returns the query mutations carried by the request.
func (r MountRequest) Patch() pkg.QueryPatch {
	return pkg.QueryPatch{
		PageSize:   r.PageSize,
		SortBy:     r.SortBy,
		SortOrder:  r.SortOrder,
		SearchTerm: r.SearchTerm,
		Filters:    r.Filters,
	}
}

// ViewResponse is a session id plus its current snapshot.
type ViewResponse struct {
	ID string `json:"id"`
	catalog.Snapshot
}

func newViewResponse(s *Session) ViewResponse {
	return ViewResponse{ID: s.ID, Snapshot: s.Controller.Snapshot()}
}
