package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	core "github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/middleware"
	"github.com/simp-lee/gemfront/internal/module/view"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// DefaultAwaitTimeout bounds how long a page waits for its grid to settle
// before rendering the loading state.
const DefaultAwaitTimeout = 3 * time.Second

// PageConfig configures the public catalog pages.
type PageConfig struct {
	// View is the mounted view kind, normally "public".
	View         string
	AwaitTimeout time.Duration
	// Categories lists the set filters usable as /catalog/:category/:value.
	// Empty allows every set filter.
	Categories []string
}

// PageHandler renders the public catalog grid.
type PageHandler struct {
	views *view.Service
	cfg   PageConfig
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(views *view.Service, cfg PageConfig) *PageHandler {
	if cfg.View == "" {
		cfg.View = "public"
	}
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = DefaultAwaitTimeout
	}
	return &PageHandler{views: views, cfg: cfg}
}

// Index renders the catalog from its query parameters.
// GET /catalog
func (h *PageHandler) Index(c *gin.Context) {
	h.mountAndRender(c, nil, "")
}

// Category renders a catalog page narrowed to one filter value,
// e.g. /catalog/shape/round.
// GET /catalog/:category/:value
func (h *PageHandler) Category(c *gin.Context) {
	key := strings.ToLower(c.Param("category"))
	spec, ok := h.views.Table().Spec(key)
	if !ok || spec.Kind != core.KindSet || !h.categoryAllowed(key) {
		middleware.ErrorPage(c, http.StatusNotFound, "No such category.")
		return
	}
	value, ok := matchOption(spec, c.Param("value"))
	if !ok {
		middleware.ErrorPage(c, http.StatusNotFound, "We don't carry that "+key+".")
		return
	}
	h.mountAndRender(c, core.Filters{key: core.SetOf(value)}, value)
}

// Grid applies the query parameters to an existing session and renders the
// grid fragment.
// GET /catalog/views/:id/grid
func (h *PageHandler) Grid(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	pkg.Apply(sess.Controller, h.views.ParseQuery(c.Request.URL.Query()))
	h.await(c, sess)
	h.renderGrid(c, sess)
}

// Refetch retries the current query of a session.
// POST /catalog/views/:id/refetch
func (h *PageHandler) Refetch(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	sess.Controller.Refetch()
	h.await(c, sess)
	h.renderGrid(c, sess)
}

func (h *PageHandler) mountAndRender(c *gin.Context, external core.Filters, heading string) {
	sess, err := h.views.Mount(view.MountParams{
		View:     h.cfg.View,
		External: external,
		Patch:    h.views.ParseQuery(c.Request.URL.Query()),
	})
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "mount catalog view", "error", err)
		middleware.ErrorPage(c, http.StatusInternalServerError, "")
		return
	}
	h.await(c, sess)

	c.HTML(http.StatusOK, "catalog/index.html", gin.H{
		"Grid":      view.NewGrid(sess, h.views.Table()),
		"GridURL":   gridURL(sess.ID),
		"Heading":   heading,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

func (h *PageHandler) renderGrid(c *gin.Context, sess *view.Session) {
	c.HTML(http.StatusOK, "catalog/grid.html", gin.H{
		"Grid":      view.NewGrid(sess, h.views.Table()),
		"GridURL":   gridURL(sess.ID),
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// lookup finds the session. An expired session sends htmx back to a freshly
// mounted catalog with the same parameters.
func (h *PageHandler) lookup(c *gin.Context) (*view.Session, bool) {
	sess, err := h.views.Lookup(c.Param("id"), view.Owner(c))
	if err == nil {
		return sess, true
	}
	if c.GetHeader("HX-Request") == "true" {
		target := "/catalog"
		if raw := c.Request.URL.RawQuery; raw != "" {
			target += "?" + raw
		}
		c.Header("HX-Redirect", target)
		c.Status(http.StatusOK)
		return nil, false
	}
	middleware.ErrorPage(c, http.StatusNotFound, "This catalog view has expired.")
	return nil, false
}

func (h *PageHandler) await(c *gin.Context, sess *view.Session) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.AwaitTimeout)
	defer cancel()
	// On timeout the grid renders its loading state and polls.
	_ = sess.Controller.Await(ctx)
}

func (h *PageHandler) categoryAllowed(key string) bool {
	if len(h.cfg.Categories) == 0 {
		return true
	}
	return slices.Contains(h.cfg.Categories, key)
}

// matchOption resolves a URL value against the options of a set filter,
// ignoring case. Filters without options accept any non-empty value.
func matchOption(spec core.FilterSpec, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if len(spec.Options) == 0 {
		return raw, true
	}
	for _, opt := range spec.Options {
		if strings.EqualFold(opt, raw) {
			return opt, true
		}
	}
	return "", false
}

func gridURL(id string) string {
	return "/catalog/views/" + id + "/grid"
}
