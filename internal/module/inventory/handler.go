package inventory

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gemfront/internal/middleware"
	"github.com/simp-lee/gemfront/internal/module/view"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// Columns are the sortable columns of the admin table, in display order.
var Columns = []Column{
	{Field: "stockId", Label: "Stock ID"},
	{Field: "shape", Label: "Shape"},
	{Field: "stoneType", Label: "Type"},
	{Field: "color", Label: "Color"},
	{Field: "clarity", Label: "Clarity"},
	{Field: "carat", Label: "Carat"},
	{Field: "origin", Label: "Origin"},
	{Field: "price", Label: "Price"},
	{Field: "status", Label: "Status"},
}

// Column is one table header.
type Column struct {
	Field string
	Label string
}

// PageConfig configures the admin inventory pages.
type PageConfig struct {
	// View is the mounted view kind, normally "admin".
	View         string
	AwaitTimeout time.Duration
}

// PageHandler renders the admin inventory table and its exports.
type PageHandler struct {
	views *view.Service
	cfg   PageConfig
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(views *view.Service, cfg PageConfig) *PageHandler {
	if cfg.View == "" {
		cfg.View = "admin"
	}
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = 3 * time.Second
	}
	return &PageHandler{views: views, cfg: cfg}
}

// ListPage mounts an admin session from the query parameters.
// GET /admin/gems
func (h *PageHandler) ListPage(c *gin.Context) {
	sess, err := h.views.Mount(view.MountParams{
		View:  h.cfg.View,
		Owner: view.Owner(c),
		Token: middleware.GetToken(c),
		Patch: h.views.ParseQuery(c.Request.URL.Query()),
	})
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "mount inventory view", "error", err)
		middleware.ErrorPage(c, http.StatusInternalServerError, "")
		return
	}
	h.await(c, sess)
	c.HTML(http.StatusOK, "inventory/list.html", h.data(c, sess))
}

// Rows applies the query parameters and renders the table fragment.
// GET /admin/gems/views/:id/rows
func (h *PageHandler) Rows(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	pkg.Apply(sess.Controller, h.views.ParseQuery(c.Request.URL.Query()))
	h.await(c, sess)
	c.HTML(http.StatusOK, "inventory/rows.html", h.data(c, sess))
}

// Refetch retries the current query.
// POST /admin/gems/views/:id/refetch
func (h *PageHandler) Refetch(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	sess.Controller.Refetch()
	h.await(c, sess)
	c.HTML(http.StatusOK, "inventory/rows.html", h.data(c, sess))
}

// ExportCSV downloads the rows currently loaded in the session.
// GET /admin/gems/views/:id/export.csv
func (h *PageHandler) ExportCSV(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	h.await(c, sess)
	snap := sess.Controller.Snapshot()

	var buf bytes.Buffer
	if err := pkg.WriteCSV(&buf, snap.Result.Items); err != nil {
		slog.ErrorContext(c.Request.Context(), "export csv", "error", err)
		middleware.ErrorPage(c, http.StatusInternalServerError, "")
		return
	}
	attachment(c, exportName(snap.Pagination.CurrentPage, "csv"))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportPDF renders the rows currently loaded in the session as a PDF.
// GET /admin/gems/views/:id/export.pdf
func (h *PageHandler) ExportPDF(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	h.await(c, sess)
	snap := sess.Controller.Snapshot()

	var buf bytes.Buffer
	if err := pkg.WritePDF(&buf, "Inventory", snap.Result.Items, snap.Pagination); err != nil {
		slog.ErrorContext(c.Request.Context(), "export pdf", "error", err)
		middleware.ErrorPage(c, http.StatusInternalServerError, "")
		return
	}
	attachment(c, exportName(snap.Pagination.CurrentPage, "pdf"))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *PageHandler) data(c *gin.Context, sess *view.Session) gin.H {
	return gin.H{
		"Grid":      view.NewGrid(sess, h.views.Table()),
		"Columns":   Columns,
		"BaseURL":   "/admin/gems/views/" + sess.ID,
		"CSRFToken": middleware.GetCSRFToken(c),
	}
}

func (h *PageHandler) lookup(c *gin.Context) (*view.Session, bool) {
	sess, err := h.views.Lookup(c.Param("id"), view.Owner(c))
	if err == nil {
		return sess, true
	}
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", "/admin/gems")
		c.Status(http.StatusOK)
		return nil, false
	}
	middleware.ErrorPage(c, http.StatusNotFound, "This inventory view has expired.")
	return nil, false
}

func (h *PageHandler) await(c *gin.Context, sess *view.Session) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.AwaitTimeout)
	defer cancel()
	_ = sess.Controller.Await(ctx)
}

func exportName(page int, ext string) string {
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf("inventory-page-%d.%s", page, ext)
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
