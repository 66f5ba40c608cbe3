// Package assets loads the per-gem file galleries (images, videos and
// certificates). Each gallery kind is loaded on its own, with its own
// loading and error state, independently of the listing fetches.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/simp-lee/gemfront/internal/remote"
)

// Kind is a gallery type.
type Kind string

const (
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindCertificate Kind = "certificate"
)

// Kinds lists every gallery type in display order.
var Kinds = []Kind{KindImage, KindVideo, KindCertificate}

// ParseKind accepts the singular or plural spelling, e.g. "image" or "images".
func ParseKind(s string) (Kind, bool) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Plural returns the collection name used in paths, e.g. "images".
func (k Kind) Plural() string {
	return string(k) + "s"
}

// ErrShapeMismatch marks an asset response without the expected data object.
var ErrShapeMismatch = errors.New("unexpected asset response shape")

// Source resolves the URLs of one gallery.
type Source interface {
	URLs(ctx context.Context, gemID string, kind Kind) ([]string, error)
}

// RESTSource reads galleries from the remote API, which answers
// {"data": {"<kind>Urls": [...]}}.
type RESTSource struct {
	client   remote.Client
	template string
	headers  func(ctx context.Context) map[string]string
}

// NewRESTSource creates a RESTSource. pathTemplate may use {id}, {kind}
// and {kinds}, e.g. "/gems/{id}/{kinds}".
func NewRESTSource(client remote.Client, pathTemplate string, headers func(ctx context.Context) map[string]string) (*RESTSource, error) {
	if client == nil {
		return nil, errors.New("remote client is nil")
	}
	if !strings.Contains(pathTemplate, "{id}") {
		return nil, fmt.Errorf("asset path template %q must contain {id}", pathTemplate)
	}
	return &RESTSource{client: client, template: pathTemplate, headers: headers}, nil
}

// URLs implements Source.
func (s *RESTSource) URLs(ctx context.Context, gemID string, kind Kind) ([]string, error) {
	path := strings.NewReplacer(
		"{id}", url.PathEscape(gemID),
		"{kinds}", kind.Plural(),
		"{kind}", string(kind),
	).Replace(s.template)

	var headers map[string]string
	if s.headers != nil {
		headers = s.headers(ctx)
	}
	body, err := s.client.Get(ctx, path, nil, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s urls: %w", kind, err)
	}
	return decodeURLs(body, kind)
}

func decodeURLs(body []byte, kind Kind) ([]string, error) {
	var env struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrShapeMismatch)
	}

	raw, ok := env.Data[string(kind)+"Urls"]
	if !ok || string(raw) == "null" {
		return []string{}, nil
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, fmt.Errorf("%w: %sUrls is not a list of strings", ErrShapeMismatch, kind)
	}
	return urls, nil
}

type dedupSource struct {
	src   Source
	group singleflight.Group
}

// Dedup wraps src so that concurrent requests for the same gallery and the
// same bearer token share a single upstream call.
func Dedup(src Source) Source {
	return &dedupSource{src: src}
}

func (d *dedupSource) URLs(ctx context.Context, gemID string, kind Kind) ([]string, error) {
	key := gemID + "\x00" + string(kind) + "\x00" + remote.BearerHeaders(ctx)["Authorization"]
	v, err, _ := d.group.Do(key, func() (any, error) {
		return d.src.URLs(ctx, gemID, kind)
	})
	if err != nil {
		return nil, err
	}
	urls := v.([]string)
	out := make([]string, len(urls))
	copy(out, urls)
	return out, nil
}

// ErrorMessage turns a load failure into the text shown in a gallery.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrShapeMismatch) {
		return "request failed: unexpected response from server"
	}
	return remote.UserMessage(err)
}
