package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bassista/snipsync/internal/logger"
	"github.com/gin-gonic/gin"
)

// RequestTimeout bounds every request of the group by d. Handlers must watch
// the request context; a handler that gives up without writing gets 504 with
// the request id in the body so clients can correlate it with their logs.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Writer.Written() {
			return
		}
		requestID := c.GetString(RequestIDKey)
		logger.WithComponent("api").Warnf("%s %s exceeded %s (request %s)",
			c.Request.Method, c.Request.URL.Path, d, requestID)
		body := gin.H{"error": "request timed out after " + d.String()}
		if requestID != "" {
			body["requestId"] = requestID
		}
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, body)
	}
}
