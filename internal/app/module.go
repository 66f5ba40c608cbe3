package app

import "github.com/gin-gonic/gin"

// Module is a feature that mounts its own routes. api is /api/v1 without
// CSRF; pages sits at the root behind CSRF, so every form and htmx request
// registered there must carry the token.
type Module interface {
	RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup)
}
