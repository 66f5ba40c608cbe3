package registration

import "github.com/gin-gonic/gin"

// RegistrationModule implements the app.Module interface for sign-up.
type RegistrationModule struct {
	handler *RegistrationHandler
}

// NewModule creates a RegistrationModule. Panics if h is nil.
func NewModule(h *RegistrationHandler) *RegistrationModule {
	if h == nil {
		panic("registration.NewModule: handler must not be nil")
	}
	return &RegistrationModule{handler: h}
}

// RegisterRoutes registers the registration API and pages.
func (m *RegistrationModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	reg := api.Group("/registration")
	reg.POST("", m.handler.Start)
	reg.POST("/:id/verify", m.handler.Verify)
	reg.POST("/:id/resend", m.handler.Resend)

	pages.GET("/register", m.handler.StartPage)
	pages.POST("/register", m.handler.StartSubmit)
	pages.GET("/register/:id/verify", m.handler.VerifyPage)
	pages.POST("/register/:id/verify", m.handler.VerifySubmit)
}
