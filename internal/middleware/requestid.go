package middleware

import (
	"log/slog"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"
)

const requestIDHeader = "X-Request-ID"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// RequestIDConfig controls request id assignment.
type RequestIDConfig struct {
	// TrustUpstream reuses a well-formed X-Request-ID from a fronting proxy.
	TrustUpstream bool
}

// RequestIDWithConfig tags every request with an id, echoed in X-Request-ID
// and attached to the request context with logger.WithContextAttrs so every
// slog call made with that context carries request_id.
func RequestIDWithConfig(cfg RequestIDConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if cfg.TrustUpstream {
			if up := c.GetHeader(requestIDHeader); requestIDPattern.MatchString(up) {
				id = up
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Header(requestIDHeader, id)
		ctx := logger.WithContextAttrs(c.Request.Context(), slog.String("request_id", id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
