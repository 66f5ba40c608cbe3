package auth

import "github.com/gin-gonic/gin"

// AuthModule mounts sign-in against the remote API. It is only registered
// when auth is enabled.
type AuthModule struct {
	handler *AuthHandler
}

// NewModule panics if h is nil.
func NewModule(h *AuthHandler) *AuthModule {
	if h == nil {
		panic("auth.NewModule: handler must not be nil")
	}
	return &AuthModule{handler: h}
}

// RegisterRoutes mounts token login for API clients and the cookie-based
// login form.
func (m *AuthModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	auth := api.Group("/auth")
	auth.POST("/login", m.handler.Login)
	auth.POST("/logout", m.handler.Logout)

	pages.GET("/login", m.handler.LoginPage)
	pages.POST("/login", m.handler.LoginSubmit)
	pages.POST("/logout", m.handler.LogoutSubmit)
}
