package catalog

import "github.com/gin-gonic/gin"

// CatalogModule implements the app.Module interface for the public catalog.
type CatalogModule struct {
	pageHandler *PageHandler
}

// NewModule creates a CatalogModule. Panics if ph is nil.
func NewModule(ph *PageHandler) *CatalogModule {
	if ph == nil {
		panic("catalog.NewModule: pageHandler must not be nil")
	}
	return &CatalogModule{pageHandler: ph}
}

// RegisterRoutes registers the catalog pages. The JSON API lives in the view
// module.
func (m *CatalogModule) RegisterRoutes(_ *gin.RouterGroup, pages *gin.RouterGroup) {
	pages.GET("/catalog", m.pageHandler.Index)
	pages.GET("/catalog/views/:id/grid", m.pageHandler.Grid)
	pages.POST("/catalog/views/:id/refetch", m.pageHandler.Refetch)
	pages.GET("/catalog/:category/:value", m.pageHandler.Category)
}
