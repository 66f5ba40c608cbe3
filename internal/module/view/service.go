package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/simp-lee/gemfront/internal/assets"
	"github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/pkg"
	"github.com/simp-lee/gemfront/internal/remote"
)

// Spec describes one kind of grid that can be mounted, e.g. "public" or
// "admin".
type Spec struct {
	Initial catalog.QueryState
	// Admin sessions are bound to the subject that mounted them.
	Admin bool
}

// Options configures a Service.
type Options struct {
	Table   *catalog.FilterTable
	Fetcher catalog.Fetcher
	// Assets may be nil, which disables galleries.
	Assets         assets.Source
	Views          map[string]Spec
	Debounce       time.Duration
	RequestTimeout time.Duration
	AssetTimeout   time.Duration
	Query          pkg.QueryOptions
	// AfterFunc overrides debounce timers (tests).
	AfterFunc catalog.AfterFunc
	Logger    *slog.Logger
}

// Service mounts, finds and unmounts view sessions.
type Service struct {
	opts     Options
	registry *Registry
	logger   *slog.Logger
}

// NewService creates a Service storing sessions in registry.
func NewService(registry *Registry, opts Options) (*Service, error) {
	if registry == nil {
		return nil, errors.New("view: registry is nil")
	}
	if opts.Table == nil {
		return nil, errors.New("view: filter table is nil")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("view: fetcher is nil")
	}
	if len(opts.Views) == 0 {
		return nil, errors.New("view: at least one view is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{opts: opts, registry: registry, logger: opts.Logger}, nil
}

// MountParams describes a new session.
type MountParams struct {
	View string
	// Owner is the session subject; required for admin views when auth is on.
	Owner string
	// Token is forwarded to the remote API on every fetch.
	Token string
	// External are route-derived filters, merged over the view defaults.
	External catalog.Filters
	// Patch is applied after External and before the first fetch.
	Patch pkg.QueryPatch
}

// Mount creates a session, applies the initial parameters and dispatches
// its first fetch.
func (s *Service) Mount(p MountParams) (*Session, error) {
	spec, ok := s.opts.Views[p.View]
	if !ok {
		return nil, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("unknown view %q", p.View), nil)
	}

	base := context.Background()
	if p.Token != "" {
		base = remote.WithBearer(base, p.Token)
	}
	ctrl, err := catalog.NewController(spec.Initial, catalog.Options{
		Name:           p.View,
		Table:          s.opts.Table,
		Fetcher:        s.opts.Fetcher,
		Debounce:       s.opts.Debounce,
		AfterFunc:      s.opts.AfterFunc,
		RequestTimeout: s.opts.RequestTimeout,
		BaseContext:    base,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to create view", err)
	}
	if p.External != nil {
		ctrl.InitializeFromExternalParams(p.External)
	}
	pkg.Apply(ctrl, p.Patch)

	sess := &Session{
		ID:         uuid.NewString(),
		View:       p.View,
		Admin:      spec.Admin,
		Owner:      p.Owner,
		Controller: ctrl,
		CreatedAt:  time.Now(),
	}
	if s.opts.Assets != nil {
		sess.Gallery = assets.NewGallery(base, s.opts.Assets, s.opts.AssetTimeout, s.logger.With(slog.String("session", sess.ID)))
	}
	if !s.registry.Add(sess) {
		return nil, domain.NewAppError(domain.CodeInternal, "view sessions are shutting down", nil)
	}
	ctrl.Mount()

	s.logger.Debug("view session mounted",
		slog.String("session", sess.ID),
		slog.String("view", p.View),
	)
	return sess, nil
}

// Lookup returns the session id when owner may use it. Admin sessions of
// another subject are reported as not found.
func (s *Service) Lookup(id, owner string) (*Session, error) {
	sess, ok := s.registry.Get(id)
	if !ok || (sess.Admin && sess.Owner != owner) {
		return nil, domain.NewAppError(domain.CodeNotFound, "view session not found", nil)
	}
	return sess, nil
}

// Unmount closes and forgets the session.
func (s *Service) Unmount(id, owner string) error {
	if _, err := s.Lookup(id, owner); err != nil {
		return err
	}
	s.registry.Remove(id)
	return nil
}

// View returns the spec of a mountable view.
func (s *Service) View(name string) (Spec, bool) {
	spec, ok := s.opts.Views[name]
	return spec, ok
}

// Table returns the filter table shared by every view.
func (s *Service) Table() *catalog.FilterTable {
	return s.opts.Table
}

// ParseQuery parses URL parameters into a patch using the service's limits.
func (s *Service) ParseQuery(q url.Values) pkg.QueryPatch {
	return pkg.ParseQuery(q, s.opts.Table, s.opts.Query)
}

// Normalize validates a patch decoded from JSON. Page sizes are clamped;
// a filter map replaces every filter, so keys it omits revert to defaults.
func (s *Service) Normalize(p *pkg.QueryPatch) error {
	if p.Page != nil && *p.Page < 1 {
		return domain.NewAppError(domain.CodeValidation, "page must be at least 1", nil)
	}
	if p.PageSize != nil {
		n := max(*p.PageSize, 1)
		if s.opts.Query.MaxPageSize > 0 {
			n = min(n, s.opts.Query.MaxPageSize)
		}
		p.PageSize = &n
	}
	if p.SortBy != nil && *p.SortBy != "" && len(s.opts.Query.SortFields) > 0 && !slices.Contains(s.opts.Query.SortFields, *p.SortBy) {
		return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("cannot sort by %q", *p.SortBy), nil)
	}
	if p.SortOrder != nil && !p.SortOrder.Valid() {
		return domain.NewAppError(domain.CodeValidation, "sort_order must be asc or desc", nil)
	}
	if p.Filters != nil {
		if unknown := s.opts.Table.Unknown(p.Filters); len(unknown) > 0 {
			return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("unknown filters: %v", unknown), nil)
		}
		for key, v := range p.Filters {
			spec, _ := s.opts.Table.Spec(key)
			if v.Kind != spec.Kind {
				return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("filter %q must be a %s filter", key, spec.Kind), nil)
			}
			if v.Kind == catalog.KindRange && v.Min > v.Max {
				return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("filter %q: min is greater than max", key), nil)
			}
		}
		p.Filters = pkg.MergeFilters(s.opts.Table.Defaults(), p.Filters)
	}
	return nil
}

// Close unmounts every session and waits for outstanding requests.
func (s *Service) Close() {
	s.registry.Close()
}
