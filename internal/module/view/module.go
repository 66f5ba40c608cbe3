package view

import "github.com/gin-gonic/gin"

// ViewModule implements the app.Module interface for view sessions.
type ViewModule struct {
	handler *Handler
}

// NewModule creates a ViewModule. Panics if h is nil.
func NewModule(h *Handler) *ViewModule {
	if h == nil {
		panic("view.NewModule: handler must not be nil")
	}
	return &ViewModule{handler: h}
}

// RegisterRoutes registers the view-session API. It has no pages.
func (m *ViewModule) RegisterRoutes(api *gin.RouterGroup, _ *gin.RouterGroup) {
	views := api.Group("/views")
	views.POST("", m.handler.Mount)
	views.GET("/:id", m.handler.Get)
	views.PATCH("/:id", m.handler.Patch)
	views.POST("/:id/refetch", m.handler.Refetch)
	views.DELETE("/:id", m.handler.Delete)
	views.GET("/:id/assets/:gem/:type", m.handler.Assets)
}
