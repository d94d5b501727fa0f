// Package middleware provides HTTP middleware components.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"sitesync/internal/infrastructure/http/v1/dto"
	"sitesync/pkg/logger"
)

// Recovery turns a panic into a 500 answer. The stack is logged, never
// returned to the peer. It runs outside ErrorHandler, so it writes the
// answer itself.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Internal(c.GetString(KeyRequestID)))
			}
		}()
		c.Next()
	}
}
