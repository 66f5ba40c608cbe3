package inventory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gemfront/internal/app"
	"github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/module/inventory"
	"github.com/simp-lee/gemfront/internal/module/view"
	"github.com/simp-lee/gemfront/web"
)

type twoGems struct{}

func (twoGems) Fetch(_ context.Context, req catalog.Request) (*catalog.Page, error) {
	return &catalog.Page{
		Items: []domain.Gem{
			{ID: "g1", StockID: "STK-001", Shape: "Round"},
			{ID: "g2", StockID: "STK-002", Shape: "Oval"},
		},
		Pagination: catalog.DeriveMeta(req.Page, req.PageSize, 2),
	}, nil
}

func TestInventoryPage_RowSelectionIsLocal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	table, err := catalog.NewFilterTable([]catalog.FilterSpec{
		{Key: "shape", Kind: catalog.KindSet},
	}, nil)
	if err != nil {
		t.Fatalf("NewFilterTable: %v", err)
	}
	svc, err := view.NewService(view.NewRegistry(view.RegistryConfig{SweepInterval: -1}, nil), view.Options{
		Table:    table,
		Fetcher:  twoGems{},
		Views:    map[string]view.Spec{"admin": {Initial: catalog.QueryState{Page: 1, PageSize: 20}, Admin: true}},
		Debounce: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)

	renderer, err := app.NewTemplateRenderer(web.EmbeddedFS, false)
	if err != nil {
		t.Fatalf("NewTemplateRenderer: %v", err)
	}
	r := gin.New()
	r.HTMLRender = renderer
	h := inventory.NewPageHandler(svc, inventory.PageConfig{AwaitTimeout: 2 * time.Second})
	inventory.NewModule(h).RegisterRoutes(r.Group("/api/v1"), r.Group("/"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/gems", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()

	if n := strings.Count(body, "data-select-all"); n != 1 {
		t.Errorf("select-all checkboxes = %d, want 1", n)
	}
	for _, id := range []string{"g1", "g2"} {
		if !strings.Contains(body, `data-select-row value="`+id+`"`) {
			t.Errorf("no row checkbox for %s", id)
		}
	}
	// Row checkboxes have no name, so no form ever submits the selection.
	if strings.Contains(body, `name="selected`) {
		t.Error("selection must not be submitted to the server")
	}
	if !strings.Contains(body, "0 selected") {
		t.Error("selection counter missing")
	}
}
