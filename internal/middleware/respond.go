package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// errorPages lists the status codes that have a template under errors/.
var errorPages = map[int]bool{
	http.StatusBadRequest:          true,
	http.StatusUnauthorized:        true,
	http.StatusForbidden:           true,
	http.StatusNotFound:            true,
	http.StatusGone:                true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
}

// abortWithError ends the request in the shape the caller can use:
// htmx swaps get an empty body and HX-Reswap none so the current fragment
// stays on screen, browsers navigating to a page get an error page, and
// everything else gets the {code, message, data} envelope.
func abortWithError(c *gin.Context, status int, message string) {
	switch {
	case isHTMX(c):
		c.Header("HX-Reswap", "none")
		c.AbortWithStatus(status)
	case acceptsHTML(c) && !isAPIPath(c):
		c.Abort()
		ErrorPage(c, status, message)
	default:
		c.AbortWithStatusJSON(status, gin.H{
			"code":    status,
			"message": message,
			"data":    nil,
		})
	}
}

// ErrorPage renders errors/<status>.html, falling back to errors/500.html
// for codes without a page and to plain text when no renderer is configured.
// An empty message leaves the page's default wording.
func ErrorPage(c *gin.Context, status int, message string) {
	defer func() {
		if r := recover(); r != nil {
			c.Data(status, "text/plain; charset=utf-8", []byte(fmt.Sprintf("%d %s", status, http.StatusText(status))))
		}
	}()
	page := status
	if !errorPages[page] {
		page = http.StatusInternalServerError
	}
	c.HTML(status, fmt.Sprintf("errors/%d.html", page), gin.H{
		"Status":  status,
		"Message": message,
		"Path":    c.Request.URL.Path,
	})
}

func acceptsHTML(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.GetHeader("Accept")), "text/html")
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

func isAPIPath(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}
