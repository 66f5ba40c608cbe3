package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/simp-lee/gemfront/internal/domain"
)

// ErrShapeMismatch marks a 2xx response whose body lacks the expected fields.
var ErrShapeMismatch = errors.New("unexpected response shape")

// PaginationMeta is the normalized page summary of one response.
type PaginationMeta struct {
	CurrentPage    int  `json:"currentPage"`
	TotalPages     int  `json:"totalPages"`
	TotalRecords   int  `json:"totalRecords"`
	RecordsPerPage int  `json:"recordsPerPage"`
	HasNextPage    bool `json:"hasNextPage"`
	HasPrevPage    bool `json:"hasPrevPage"`
}

// Page is one normalized listing response.
type Page struct {
	Items      []domain.Gem
	Pagination PaginationMeta
}

type envelope struct {
	Success      *bool            `json:"success"`
	Data         json.RawMessage  `json:"data"`
	Pagination   *remotePageBlock `json:"pagination"`
	TotalRecords *int             `json:"totalRecords"`
	Message      string           `json:"message"`
	Error        json.RawMessage  `json:"error"`
}

type remotePageBlock struct {
	CurrentPage    int   `json:"currentPage"`
	TotalPages     int   `json:"totalPages"`
	TotalRecords   int   `json:"totalRecords"`
	RecordsPerPage int   `json:"recordsPerPage"`
	HasNextPage    *bool `json:"hasNextPage"`
	HasPrevPage    *bool `json:"hasPrevPage"`
}

// DecodePage parses a listing/search response body for req.
//
// A body with "success": false is reported as an *EnvelopeError carrying the
// server's message. A body without a "data" array wraps ErrShapeMismatch.
// The pagination block is authoritative when present; otherwise the meta is
// derived from totalRecords and the requested page size.
func DecodePage(body []byte, req Request) (*Page, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if env.Success != nil && !*env.Success {
		return nil, &EnvelopeError{Message: env.failureMessage()}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: missing data array", ErrShapeMismatch)
	}

	var items []domain.Gem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, fmt.Errorf("%w: data is not an array of records: %v", ErrShapeMismatch, err)
	}
	if items == nil {
		items = []domain.Gem{}
	}

	var meta PaginationMeta
	if env.Pagination != nil {
		meta = fromRemoteBlock(*env.Pagination, req)
	} else {
		total := (req.Page-1)*req.PageSize + len(items)
		if env.TotalRecords != nil {
			total = *env.TotalRecords
		}
		meta = DeriveMeta(req.Page, req.PageSize, total)
	}

	return &Page{Items: items, Pagination: meta}, nil
}

// DeriveMeta computes pagination from a total record count.
func DeriveMeta(page, pageSize, totalRecords int) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(totalRecords) / float64(pageSize)))
	}
	return PaginationMeta{
		CurrentPage:    page,
		TotalPages:     totalPages,
		TotalRecords:   totalRecords,
		RecordsPerPage: pageSize,
		HasNextPage:    page < totalPages,
		HasPrevPage:    page > 1,
	}
}

func fromRemoteBlock(b remotePageBlock, req Request) PaginationMeta {
	perPage := b.RecordsPerPage
	if perPage <= 0 {
		perPage = req.PageSize
	}
	current := b.CurrentPage
	if current <= 0 {
		current = req.Page
	}
	totalPages := b.TotalPages
	if totalPages <= 0 && perPage > 0 {
		totalPages = int(math.Ceil(float64(b.TotalRecords) / float64(perPage)))
	}

	meta := PaginationMeta{
		CurrentPage:    current,
		TotalPages:     totalPages,
		TotalRecords:   b.TotalRecords,
		RecordsPerPage: perPage,
		HasNextPage:    current < totalPages,
		HasPrevPage:    current > 1,
	}
	if b.HasNextPage != nil {
		meta.HasNextPage = *b.HasNextPage
	}
	if b.HasPrevPage != nil {
		meta.HasPrevPage = *b.HasPrevPage
	}
	return meta
}

// EnvelopeError is a 2xx response that reported "success": false.
type EnvelopeError struct {
	Message string
}

// Error implements the error interface.
func (e *EnvelopeError) Error() string {
	return e.Message
}

func (e envelope) failureMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Error) > 0 {
		var s string
		if err := json.Unmarshal(e.Error, &s); err == nil && s != "" {
			return s
		}
	}
	return "request failed"
}
