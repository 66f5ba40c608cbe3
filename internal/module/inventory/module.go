package inventory

import "github.com/gin-gonic/gin"

// InventoryModule implements the app.Module interface for the admin grid.
type InventoryModule struct {
	pageHandler *PageHandler
	guard       []gin.HandlerFunc
}

// NewModule creates an InventoryModule. guard runs before every route,
// normally middleware.RequireRole. Panics if ph is nil.
func NewModule(ph *PageHandler, guard ...gin.HandlerFunc) *InventoryModule {
	if ph == nil {
		panic("inventory.NewModule: pageHandler must not be nil")
	}
	return &InventoryModule{pageHandler: ph, guard: guard}
}

// RegisterRoutes registers the admin pages.
func (m *InventoryModule) RegisterRoutes(_ *gin.RouterGroup, pages *gin.RouterGroup) {
	admin := pages.Group("/admin/gems", m.guard...)
	admin.GET("", m.pageHandler.ListPage)
	admin.GET("/views/:id/rows", m.pageHandler.Rows)
	admin.POST("/views/:id/refetch", m.pageHandler.Refetch)
	admin.GET("/views/:id/export.csv", m.pageHandler.ExportCSV)
	admin.GET("/views/:id/export.pdf", m.pageHandler.ExportPDF)
}
