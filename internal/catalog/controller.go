package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/simp-lee/gemfront/internal/domain"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 250 * time.Millisecond

// FetchResult is what the view currently displays.
//
// On failure Items keeps the records of the last successful fetch; Error is
// cleared as soon as the next request is dispatched.
type FetchResult struct {
	Items   []domain.Gem `json:"items"`
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
}

// Snapshot is a consistent copy of a controller's state.
type Snapshot struct {
	View       string         `json:"view"`
	State      QueryState     `json:"state"`
	Endpoint   Endpoint       `json:"endpoint"`
	Result     FetchResult    `json:"result"`
	Pagination PaginationMeta `json:"pagination"`
	// Seq is the sequence number of the request whose outcome is shown.
	Seq uint64 `json:"seq"`
}

// Options configures a Controller.
type Options struct {
	// Name identifies the view in logs and snapshots.
	Name    string
	Table   *FilterTable
	Fetcher Fetcher
	// Debounce is the quiet period between the last state change and its fetch.
	Debounce time.Duration
	// AfterFunc overrides timer creation (tests).
	AfterFunc AfterFunc
	// RequestTimeout bounds each fetch. Zero means no extra bound.
	RequestTimeout time.Duration
	// BaseContext supplies values (not cancellation) for every fetch.
	BaseContext context.Context
	Logger      *slog.Logger
	// OnChange is called, outside any lock, after every visible change.
	OnChange func(Snapshot)
}

// Controller turns query state changes into at most one wanted fetch at a
// time and keeps the normalized result. It is safe for concurrent use.
//
// Every dispatched request gets the next sequence number; only the
// completion of the most recently dispatched request is applied, so a slow
// response for an older state never overwrites a newer one.
type Controller struct {
	mu sync.Mutex

	name      string
	store     *Store
	table     *FilterTable
	fetcher   Fetcher
	debouncer *Debouncer
	timeout   time.Duration
	baseCtx   context.Context
	logger    *slog.Logger
	onChange  func(Snapshot)

	seq      uint64
	shown    uint64
	endpoint Endpoint
	result   FetchResult
	meta     PaginationMeta

	mounted bool
	closed  bool
	busy    bool
	idle    chan struct{}

	inflight sync.WaitGroup
}

// NewController creates an unmounted controller starting at initial.
func NewController(initial QueryState, opts Options) (*Controller, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("catalog: fetcher is nil")
	}
	if opts.Table == nil {
		return nil, errors.New("catalog: filter table is nil")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}

	idle := make(chan struct{})
	close(idle)

	return &Controller{
		name:      opts.Name,
		store:     NewStore(initial, opts.Table.Defaults()),
		table:     opts.Table,
		fetcher:   opts.Fetcher,
		debouncer: NewDebouncer(opts.Debounce, opts.AfterFunc),
		timeout:   opts.RequestTimeout,
		baseCtx:   context.WithoutCancel(opts.BaseContext),
		logger:    opts.Logger.With(slog.String("view", opts.Name)),
		onChange:  opts.OnChange,
		result:    FetchResult{Items: []domain.Gem{}},
		idle:      idle,
	}, nil
}

// Mount dispatches the first fetch immediately. Later calls are no-ops.
func (c *Controller) Mount() {
	c.mu.Lock()
	if c.mounted || c.closed {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	c.mu.Unlock()

	c.dispatch()
}

// Close unmounts the controller: pending debounced fetches are dropped and
// completions of in-flight requests are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.debouncer.Cancel()
	c.markIdleLocked()
}

// Wait blocks until every dispatched request has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetPage sets the page number. Bounds checking is the caller's concern.
func (c *Controller) SetPage(n int) {
	c.mutate(func(s *Store) bool { return s.SetPage(n) })
}

// SetPageSize sets the page size and returns to page 1.
func (c *Controller) SetPageSize(n int) {
	c.mutate(func(s *Store) bool { return s.SetPageSize(n) })
}

// SetSort sets the sort column and direction, keeping the page.
func (c *Controller) SetSort(field string, order SortOrder) {
	c.mutate(func(s *Store) bool { return s.SetSort(field, order) })
}

// SetSearchTerm sets the free-text search and returns to page 1.
func (c *Controller) SetSearchTerm(term string) {
	c.mutate(func(s *Store) bool { return s.SetSearchTerm(term) })
}

// SetFilters replaces all filters and returns to page 1.
func (c *Controller) SetFilters(f Filters) {
	c.mutate(func(s *Store) bool { return s.SetFilters(f) })
}

// InitializeFromExternalParams merges route filters over the defaults and
// returns to page 1. Identical repeated calls do not fetch again.
func (c *Controller) InitializeFromExternalParams(partial Filters) {
	c.mutate(func(s *Store) bool { return s.InitializeFromExternalParams(partial) })
}

// Refetch re-issues the fetch for the current state now, without debounce.
func (c *Controller) Refetch() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.debouncer.Cancel()
	c.mounted = true
	c.mu.Unlock()

	c.dispatch()
}

// State returns the current query state.
func (c *Controller) State() QueryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.State()
}

// Snapshot returns a consistent copy of the state and the displayed result.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Await blocks until no debounced fetch is pending and the latest request
// has settled, or ctx is done.
func (c *Controller) Await(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) mutate(fn func(*Store) bool) {
	c.mu.Lock()
	if c.closed || !fn(c.store) {
		c.mu.Unlock()
		return
	}
	if !c.mounted {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return
	}
	c.markBusyLocked()
	c.debouncer.Trigger(c.dispatch)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *Controller) dispatch() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	state := c.store.State()
	req := Compile(state, c.table)
	c.endpoint = req.Endpoint
	c.result.Loading = true
	c.result.Error = ""
	c.markBusyLocked()
	snap := c.snapshotLocked()
	// Added under the lock so Close followed by Wait always covers this fetch.
	c.inflight.Add(1)
	c.mu.Unlock()

	// announced orders this fetch's result after its Loading snapshot.
	announced := make(chan struct{})
	go func() {
		defer c.inflight.Done()

		ctx := c.baseCtx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		page, err := c.fetcher.Fetch(ctx, req)
		c.settle(seq, req, page, err, announced)
	}()

	if unknown := c.table.Unknown(state.Filters); len(unknown) > 0 {
		c.logger.Warn("ignoring filters missing from the filter table", slog.Any("filters", unknown))
	}
	c.logger.Debug("dispatch fetch",
		slog.Uint64("seq", seq),
		slog.String("endpoint", req.Endpoint.String()),
		slog.String("query", req.Query.Encode()),
	)
	c.notify(snap)
	close(announced)
}

func (c *Controller) settle(seq uint64, req Request, page *Page, err error, announced <-chan struct{}) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("dropping stale response", slog.Uint64("seq", seq))
		return
	}

	if err == nil && page == nil {
		err = ErrShapeMismatch
	}
	c.result.Loading = false
	c.shown = seq
	if err != nil {
		c.result.Error = ErrorMessage(err)
	} else {
		c.result.Items = page.Items
		c.result.Error = ""
		c.meta = page.Pagination
	}
	if !c.debouncer.Pending() {
		c.markIdleLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	<-announced

	if err != nil {
		c.logger.Warn("fetch failed",
			slog.Uint64("seq", seq),
			slog.String("endpoint", req.Endpoint.String()),
			slog.Any("error", err),
		)
	}
	c.notify(snap)
}

func (c *Controller) markBusyLocked() {
	if !c.busy {
		c.busy = true
		c.idle = make(chan struct{})
	}
}

func (c *Controller) markIdleLocked() {
	if c.busy {
		c.busy = false
		close(c.idle)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	items := make([]domain.Gem, len(c.result.Items))
	copy(items, c.result.Items)
	return Snapshot{
		View:     c.name,
		State:    c.store.State(),
		Endpoint: c.endpoint,
		Result: FetchResult{
			Items:   items,
			Loading: c.result.Loading,
			Error:   c.result.Error,
		},
		Pagination: c.meta,
		Seq:        c.shown,
	}
}

func (c *Controller) notify(s Snapshot) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
