package view

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gemfront/internal/assets"
	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/middleware"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// HandlerConfig controls who may mount admin views.
type HandlerConfig struct {
	// AuthEnabled requires a session with AdminRole for admin views.
	AuthEnabled bool
	AdminRole   string
}

// Handler serves the view-session JSON API.
type Handler struct {
	svc *Service
	cfg HandlerConfig
}

// NewHandler creates a Handler.
func NewHandler(svc *Service, cfg HandlerConfig) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

// Authorize reports whether the request may use a view of the given spec.
func (h *Handler) Authorize(c *gin.Context, spec Spec) error {
	return authorize(c, spec, h.cfg)
}

func authorize(c *gin.Context, spec Spec, cfg HandlerConfig) error {
	if !spec.Admin || !cfg.AuthEnabled {
		return nil
	}
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return domain.NewAppError(domain.CodeUnauthorized, "unauthorized", nil)
	}
	if cfg.AdminRole != "" && claims.Role != cfg.AdminRole {
		return domain.NewAppError(domain.CodeForbidden, "forbidden", nil)
	}
	return nil
}

// Owner returns the identity sessions mounted by this request belong to.
func Owner(c *gin.Context) string {
	claims, _ := middleware.GetClaims(c)
	return claims.Identity()
}

// Mount handles POST /api/v1/views.
func (h *Handler) Mount(c *gin.Context) {
	var req MountRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}
	spec, ok := h.svc.View(req.Kind)
	if !ok {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "unknown view kind", nil))
		return
	}
	if err := h.Authorize(c, spec); err != nil {
		pkg.Error(c, err)
		return
	}

	patch := req.Patch()
	if err := h.svc.Normalize(&patch); err != nil {
		pkg.Error(c, err)
		return
	}
	params := MountParams{View: req.Kind, Owner: Owner(c), Patch: patch}
	if spec.Admin {
		params.Token = middleware.GetToken(c)
	}
	sess, err := h.svc.Mount(params)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, pkg.Response{
		Code:    http.StatusCreated,
		Message: "success",
		Data:    newViewResponse(sess),
	})
}

// Get handles GET /api/v1/views/:id. With ?wait=1 it first waits for the
// view to settle, for as long as the request lives.
func (h *Handler) Get(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	h.maybeAwait(c, sess)
	pkg.Success(c, newViewResponse(sess))
}

// Patch handles PATCH /api/v1/views/:id.
func (h *Handler) Patch(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	var patch pkg.QueryPatch
	if !pkg.BindAndValidate(c, &patch) {
		return
	}
	if err := h.svc.Normalize(&patch); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Apply(sess.Controller, patch)
	h.maybeAwait(c, sess)
	pkg.Success(c, newViewResponse(sess))
}

// Refetch handles POST /api/v1/views/:id/refetch.
func (h *Handler) Refetch(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	sess.Controller.Refetch()
	h.maybeAwait(c, sess)
	pkg.Success(c, newViewResponse(sess))
}

// Delete handles DELETE /api/v1/views/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Unmount(c.Param("id"), Owner(c)); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.NoContent(c)
}

// Assets handles GET /api/v1/views/:id/assets/:gem/:type.
func (h *Handler) Assets(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	kind, ok := assets.ParseKind(c.Param("type"))
	if !ok {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "unknown asset type", nil))
		return
	}
	if sess.Gallery == nil {
		pkg.Error(c, domain.NewAppError(domain.CodeNotFound, "asset galleries are disabled", nil))
		return
	}

	gem := c.Param("gem")
	if wantsWait(c) {
		// A canceled request still reports whatever state the gallery is in.
		state, _ := sess.Gallery.Await(c.Request.Context(), gem, kind)
		pkg.Success(c, state)
		return
	}
	pkg.Success(c, sess.Gallery.Load(gem, kind))
}

func (h *Handler) lookup(c *gin.Context) (*Session, bool) {
	sess, err := h.svc.Lookup(c.Param("id"), Owner(c))
	if err != nil {
		pkg.Error(c, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) maybeAwait(c *gin.Context, sess *Session) {
	if !wantsWait(c) {
		return
	}
	_ = sess.Controller.Await(c.Request.Context())
}

func wantsWait(c *gin.Context) bool {
	switch c.Query("wait") {
	case "1", "true":
		return true
	}
	return false
}
