package assets

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// State is what one gallery currently shows.
type State struct {
	Kind    Kind     `json:"kind"`
	Loading bool     `json:"loading"`
	Error   string   `json:"error,omitempty"`
	URLs    []string `json:"urls"`
}

type galleryKey struct {
	gemID string
	kind  Kind
}

// maxGalleries bounds how many (gem, kind) pairs one view keeps.
const maxGalleries = 256

type entry struct {
	state State
	done  chan struct{}
}

// Gallery holds the asset galleries opened by one view. Every (gem, kind)
// pair loads on its own and completes in any order; once the gallery is
// closed, late completions are dropped.
type Gallery struct {
	mu      sync.Mutex
	base    context.Context
	source  Source
	timeout time.Duration
	logger  *slog.Logger
	limit   int
	entries map[galleryKey]*entry
	order   []galleryKey
	closed  bool
	wg      sync.WaitGroup
}

// NewGallery creates a Gallery over source. Loads run under base, so values
// such as the viewer's bearer token reach the source; nil means Background.
// timeout bounds each load; zero means no bound.
func NewGallery(base context.Context, source Source, timeout time.Duration, logger *slog.Logger) *Gallery {
	if base == nil {
		base = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gallery{
		base:    base,
		source:  source,
		timeout: timeout,
		logger:  logger,
		limit:   maxGalleries,
		entries: make(map[galleryKey]*entry),
	}
}

// Load returns the state of the gallery, starting its first load if needed.
func (g *Gallery) Load(gemID string, kind Kind) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := galleryKey{gemID, kind}
	if e, ok := g.entries[k]; ok {
		return e.state.clone()
	}
	return g.startLocked(k)
}

// Reload starts a fresh load unless one is already running.
func (g *Gallery) Reload(gemID string, kind Kind) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := galleryKey{gemID, kind}
	if e, ok := g.entries[k]; ok && e.state.Loading {
		return e.state.clone()
	}
	return g.startLocked(k)
}

// Await waits for the current load of the gallery, starting it if needed.
func (g *Gallery) Await(ctx context.Context, gemID string, kind Kind) (State, error) {
	st := g.Load(gemID, kind)

	g.mu.Lock()
	e := g.entries[galleryKey{gemID, kind}]
	g.mu.Unlock()
	if e == nil {
		return st, nil
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return State{}, ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return e.state.clone(), nil
}

// Close drops every pending completion. It is safe to call more than once.
func (g *Gallery) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for _, e := range g.entries {
		if e.state.Loading {
			close(e.done)
		}
	}
}

// Wait blocks until every started load has returned.
func (g *Gallery) Wait() {
	g.wg.Wait()
}

func (g *Gallery) startLocked(k galleryKey) State {
	if g.closed {
		return State{Kind: k.kind, URLs: []string{}}
	}

	prev := g.entries[k]
	if prev == nil && !g.makeRoomLocked() {
		return State{Kind: k.kind, Error: "too many galleries open", URLs: []string{}}
	}
	e := &entry{done: make(chan struct{})}
	e.state = State{Kind: k.kind, Loading: true, URLs: []string{}}
	if prev != nil {
		e.state.URLs = prev.state.URLs
	}
	g.entries[k] = e
	if prev == nil {
		g.order = append(g.order, k)
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx := g.base
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		urls, err := g.source.URLs(ctx, k.gemID, k.kind)
		g.finish(k, e, urls, err)
	}()
	return e.state.clone()
}

// makeRoomLocked evicts the oldest settled gallery when the view is at its
// limit. It reports false when every kept gallery is still loading.
func (g *Gallery) makeRoomLocked() bool {
	if len(g.entries) < g.limit {
		return true
	}
	for i, k := range g.order {
		if g.entries[k].state.Loading {
			continue
		}
		delete(g.entries, k)
		g.order = slices.Delete(g.order, i, i+1)
		return true
	}
	return false
}

func (g *Gallery) finish(k galleryKey, e *entry, urls []string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.entries[k] != e {
		return
	}
	e.state.Loading = false
	if err != nil {
		e.state.Error = ErrorMessage(err)
		g.logger.Warn("asset load failed",
			slog.String("gem_id", k.gemID),
			slog.String("kind", string(k.kind)),
			slog.Any("error", err),
		)
	} else {
		if urls == nil {
			urls = []string{}
		}
		e.state.URLs = urls
		e.state.Error = ""
	}
	close(e.done)
}

func (s State) clone() State {
	s.URLs = slices.Clone(s.URLs)
	if s.URLs == nil {
		s.URLs = []string{}
	}
	return s
}
