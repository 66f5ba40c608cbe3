package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/pkg"
	"github.com/simp-lee/gemfront/internal/remote"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestTable(t *testing.T) *catalog.FilterTable {
	t.Helper()
	table, err := catalog.NewFilterTable([]catalog.FilterSpec{
		{Key: "shape", Kind: catalog.KindSet},
		{Key: "carat", Kind: catalog.KindRange, Min: 0, Max: 10},
		{Key: "certified", Kind: catalog.KindBool},
	}, nil)
	if err != nil {
		t.Fatalf("NewFilterTable: %v", err)
	}
	return table
}

// stubFetcher answers every request with one gem and 42 total records.
type stubFetcher struct {
	mu     sync.Mutex
	reqs   []catalog.Request
	tokens []string
	err    error
}

func (f *stubFetcher) Fetch(ctx context.Context, req catalog.Request) (*catalog.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	f.tokens = append(f.tokens, remote.BearerHeaders(ctx)["Authorization"])
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.Page{
		Items:      []domain.Gem{{ID: "g1", Shape: "Round"}},
		Pagination: catalog.DeriveMeta(req.Page, req.PageSize, 42),
	}, nil
}

func (f *stubFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *stubFetcher) last() (catalog.Request, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1], f.tokens[len(f.tokens)-1]
}

func testViews() map[string]Spec {
	initial := catalog.QueryState{Page: 1, PageSize: 20, SortBy: "createdAt", SortOrder: catalog.SortDesc}
	return map[string]Spec{
		"public": {Initial: initial},
		"admin":  {Initial: initial, Admin: true},
	}
}

func newTestService(t *testing.T, fetcher catalog.Fetcher, opts ...func(*Options)) *Service {
	t.Helper()
	o := Options{
		Table:    newTestTable(t),
		Fetcher:  fetcher,
		Views:    testViews(),
		Debounce: time.Millisecond,
		Query:    pkg.QueryOptions{MaxPageSize: 100, SortFields: []string{"createdAt", "price", "carat"}},
	}
	for _, fn := range opts {
		fn(&o)
	}
	svc, err := NewService(NewRegistry(RegistryConfig{SweepInterval: -1}, nil), o)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func awaitSession(t *testing.T, s *Session) catalog.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Controller.Await(ctx); err != nil {
		t.Fatalf("Await: %v", err)
	}
	return s.Controller.Snapshot()
}

func intPtr(n int) *int      { return &n }
func strPtr(s string) *string { return &s }
func orderPtr(o catalog.SortOrder) *catalog.SortOrder { return &o }

func TestNewService_RequiresDependencies(t *testing.T) {
	reg := NewRegistry(RegistryConfig{SweepInterval: -1}, nil)
	defer reg.Close()
	table := newTestTable(t)
	fetcher := &stubFetcher{}

	tests := []struct {
		name string
		reg  *Registry
		opts Options
	}{
		{"nil registry", nil, Options{Table: table, Fetcher: fetcher, Views: testViews()}},
		{"nil table", reg, Options{Fetcher: fetcher, Views: testViews()}},
		{"nil fetcher", reg, Options{Table: table, Views: testViews()}},
		{"no views", reg, Options{Table: table, Fetcher: fetcher}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.reg, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestService_MountAppliesPatchBeforeFirstFetch(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := newTestService(t, fetcher)

	sess, err := svc.Mount(MountParams{
		View:     "public",
		External: catalog.Filters{"shape": catalog.SetOf("Oval")},
		Patch:    pkg.QueryPatch{PageSize: intPtr(50), SearchTerm: strPtr("ruby")},
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	snap := awaitSession(t, sess)

	if n := fetcher.count(); n != 1 {
		t.Fatalf("fetches = %d, want 1", n)
	}
	if snap.State.PageSize != 50 || snap.State.SearchTerm != "ruby" {
		t.Errorf("state = %+v", snap.State)
	}
	if !snap.State.Filters["shape"].Equal(catalog.SetOf("Oval")) {
		t.Errorf("shape = %+v", snap.State.Filters["shape"])
	}
	if snap.Endpoint != catalog.Search {
		t.Errorf("endpoint = %v, want search", snap.Endpoint)
	}
	if len(snap.Result.Items) != 1 || snap.Pagination.TotalRecords != 42 {
		t.Errorf("result = %+v, pagination = %+v", snap.Result, snap.Pagination)
	}
	if sess.Gallery != nil {
		t.Error("gallery should be nil without an asset source")
	}
}

func TestService_MountUnknownView(t *testing.T) {
	svc := newTestService(t, &stubFetcher{})
	_, err := svc.Mount(MountParams{View: "nope"})
	if !domain.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestService_MountForwardsToken(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := newTestService(t, fetcher)

	sess, err := svc.Mount(MountParams{View: "admin", Owner: "alice", Token: "tok-1"})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	awaitSession(t, sess)

	if _, tok := fetcher.last(); tok != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", tok)
	}
}

func TestService_LookupHonorsOwner(t *testing.T) {
	svc := newTestService(t, &stubFetcher{})

	admin, err := svc.Mount(MountParams{View: "admin", Owner: "alice"})
	if err != nil {
		t.Fatalf("Mount admin: %v", err)
	}
	public, err := svc.Mount(MountParams{View: "public", Owner: "alice"})
	if err != nil {
		t.Fatalf("Mount public: %v", err)
	}

	if _, err := svc.Lookup(admin.ID, "alice"); err != nil {
		t.Errorf("owner lookup: %v", err)
	}
	if _, err := svc.Lookup(admin.ID, "mallory"); !domain.IsNotFound(err) {
		t.Errorf("foreign admin lookup err = %v, want not found", err)
	}
	if _, err := svc.Lookup(public.ID, ""); err != nil {
		t.Errorf("public lookup: %v", err)
	}
	if _, err := svc.Lookup("missing", "alice"); !domain.IsNotFound(err) {
		t.Errorf("missing lookup err = %v, want not found", err)
	}
}

func TestService_Unmount(t *testing.T) {
	svc := newTestService(t, &stubFetcher{})
	sess, err := svc.Mount(MountParams{View: "public"})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	if err := svc.Unmount(sess.ID, ""); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if !sess.Controller.Closed() {
		t.Error("controller should be closed")
	}
	if err := svc.Unmount(sess.ID, ""); !domain.IsNotFound(err) {
		t.Errorf("second Unmount err = %v, want not found", err)
	}
}

func TestService_MountAfterClose(t *testing.T) {
	svc := newTestService(t, &stubFetcher{})
	svc.Close()

	if _, err := svc.Mount(MountParams{View: "public"}); err == nil {
		t.Error("expected error after Close")
	}
}

func TestService_FetchErrorKeepsSessionUsable(t *testing.T) {
	fetcher := &stubFetcher{err: &remote.Error{Status: 500, Message: "DB down"}}
	svc := newTestService(t, fetcher)

	sess, err := svc.Mount(MountParams{View: "public"})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	snap := awaitSession(t, sess)
	if snap.Result.Error != "DB down" {
		t.Errorf("error = %q, want DB down", snap.Result.Error)
	}
	if snap.Result.Loading {
		t.Error("loading should be false after failure")
	}
}

func TestService_Normalize(t *testing.T) {
	svc := newTestService(t, &stubFetcher{})

	bad := []struct {
		name  string
		patch pkg.QueryPatch
	}{
		{"page zero", pkg.QueryPatch{Page: intPtr(0)}},
		{"sort field", pkg.QueryPatch{SortBy: strPtr("color")}},
		{"sort order", pkg.QueryPatch{SortOrder: orderPtr("sideways")}},
		{"unknown filter", pkg.QueryPatch{Filters: catalog.Filters{"mood": catalog.SetOf("happy")}}},
		{"kind mismatch", pkg.QueryPatch{Filters: catalog.Filters{"carat": catalog.SetOf("1")}}},
		{"inverted range", pkg.QueryPatch{Filters: catalog.Filters{"carat": catalog.RangeOf(3, 1)}}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.patch
			if err := svc.Normalize(&p); !domain.IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}

	t.Run("clamps and merges", func(t *testing.T) {
		p := pkg.QueryPatch{
			PageSize: intPtr(500),
			SortBy:   strPtr("price"),
			Filters:  catalog.Filters{"shape": catalog.SetOf("Round")},
		}
		if err := svc.Normalize(&p); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if *p.PageSize != 100 {
			t.Errorf("page size = %d, want 100", *p.PageSize)
		}
		if len(p.Filters) != 3 {
			t.Errorf("filters = %v, want every key", p.Filters)
		}
		if !p.Filters["carat"].Equal(catalog.RangeOf(0, 10)) {
			t.Errorf("carat = %+v, want default", p.Filters["carat"])
		}
	})

	t.Run("page size floor", func(t *testing.T) {
		p := pkg.QueryPatch{PageSize: intPtr(-3)}
		if err := svc.Normalize(&p); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if *p.PageSize != 1 {
			t.Errorf("page size = %d, want 1", *p.PageSize)
		}
	})
}

func TestService_AwaitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	fetcher := catalog.FetcherFunc(func(ctx context.Context, req catalog.Request) (*catalog.Page, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, errors.New("stopped")
	})
	svc := newTestService(t, fetcher, func(o *Options) { o.RequestTimeout = time.Second })
	defer close(block)

	sess, err := svc.Mount(MountParams{View: "public"})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sess.Controller.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await err = %v, want deadline exceeded", err)
	}
}
