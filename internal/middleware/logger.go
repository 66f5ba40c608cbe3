package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request at a level chosen by status: Error for
// 5xx, Warn for 4xx, Info otherwise. Static assets and health probes that
// succeed drop to Debug so grid polling stays readable.
//
// Requests routed to a view session carry its id as "view_session"; htmx
// requests carry the swap target. The request id comes from the context
// attrs set by RequestIDWithConfig.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Int("bytes", max(c.Writer.Size(), 0)),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if strings.Contains(route, "/views/:id") {
			attrs = append(attrs, slog.String("view_session", c.Param("id")))
		}
		if isHTMX(c) {
			attrs = append(attrs, slog.String("hx_target", c.GetHeader("HX-Target")))
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			attrs = append(attrs, slog.String("errors", errs.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case quietRoute(route):
			level = slog.LevelDebug
		}
		logger.LogAttrs(c.Request.Context(), level, "request", attrs...)
	}
}

func quietRoute(route string) bool {
	return route == "/health" || strings.HasPrefix(route, "/static/")
}
