package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/simp-lee/gemfront/internal/remote"
)

// Fetcher performs one compiled listing request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Page, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req Request) (*Page, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req Request) (*Page, error) {
	return f(ctx, req)
}

// Endpoints holds the remote paths of the two listing endpoints.
type Endpoints struct {
	Listing string
	Search  string
}

// HTTPFetcher fetches pages from the remote REST API.
type HTTPFetcher struct {
	client    remote.Client
	endpoints Endpoints
	headers   func(ctx context.Context) map[string]string
}

// NewHTTPFetcher creates a Fetcher over client. headers, when non-nil, is
// consulted per request (e.g. to forward the caller's session token).
func NewHTTPFetcher(client remote.Client, endpoints Endpoints, headers func(ctx context.Context) map[string]string) (*HTTPFetcher, error) {
	if client == nil {
		return nil, errors.New("remote client is nil")
	}
	if strings.TrimSpace(endpoints.Listing) == "" || strings.TrimSpace(endpoints.Search) == "" {
		return nil, errors.New("listing and search endpoints are required")
	}
	return &HTTPFetcher{client: client, endpoints: endpoints, headers: headers}, nil
}

// Fetch issues the GET for req and decodes the envelope.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Page, error) {
	path := f.endpoints.Listing
	if req.Endpoint == Search {
		path = f.endpoints.Search
	}

	var headers map[string]string
	if f.headers != nil {
		headers = f.headers(ctx)
	}

	body, err := f.client.Get(ctx, path, req.Query, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.Endpoint, err)
	}
	return DecodePage(body, req)
}

// ErrorMessage turns a fetch failure into the text stored in FetchResult.Error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var envErr *EnvelopeError
	if errors.As(err, &envErr) {
		return envErr.Message
	}
	if errors.Is(err, ErrShapeMismatch) {
		return "request failed: unexpected response from server"
	}
	return remote.UserMessage(err)
}
