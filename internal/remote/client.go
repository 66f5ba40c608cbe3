// Package remote is the JSON-over-HTTP client for the gemstone REST API.
//
// Every call returns either the raw response body of a 2xx response or an
// *Error whose Message is extracted from the body the same way for every
// endpoint: the "message" field, then the "error" field, then a generic
// "request failed" text that names the HTTP status when one is known.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single request when the config leaves it unset.
	DefaultTimeout = 15 * time.Second

	maxBodyBytes = 8 << 20
)

// Client performs requests against the remote API.
// Implementations are safe for concurrent use.
type Client interface {
	Get(ctx context.Context, path string, query url.Values, headers map[string]string) ([]byte, error)
	Post(ctx context.Context, path string, body any, headers map[string]string) ([]byte, error)
}

// Config holds the remote API connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client (tests, custom transports).
	HTTPClient *http.Client
}

type client struct {
	base *url.URL
	http *http.Client
}

// NewClient creates a Client rooted at cfg.BaseURL.
func NewClient(cfg Config) (Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("remote base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse remote base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote base url %q: scheme must be http or https", raw)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &client{base: base, http: hc}, nil
}

// Get performs a GET request for path with the given query.
func (c *client) Get(ctx context.Context, path string, query url.Values, headers map[string]string) ([]byte, error) {
	u := c.resolve(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req, headers)
}

// Post performs a POST request with a JSON body.
func (c *client) Post(ctx context.Context, path string, body any, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path).String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, headers)
}

func (c *client) resolve(path string) *url.URL {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawQuery = ""
	return &u
}

func (c *client) do(req *http.Request, headers map[string]string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Message: ExtractMessage(body, resp.StatusCode)}
	}
	return body, nil
}
