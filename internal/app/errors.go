package app

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gemfront/internal/middleware"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// renderError answers unmatched routes. Browser navigations (text/html, */*
// or no Accept at all) get an error page unless JSON is named explicitly;
// /api/ paths always get the envelope.
func renderError(c *gin.Context, code int, message string) {
	if wantsPage(c) {
		middleware.ErrorPage(c, code, message)
		return
	}
	c.JSON(code, pkg.Response{Code: code, Message: message})
}

func wantsPage(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return false
	}
	accept := strings.ToLower(c.GetHeader("Accept"))
	if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html") {
		return false
	}
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

func noRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		renderError(c, http.StatusNotFound, "not found")
	}
}
