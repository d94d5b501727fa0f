package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"sitesync/pkg/logger"
)

// Logger logs every request with its latency and status. Health probes are
// logged at debug level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		l := log.WithContext(c.Request.Context())
		write := l.Infow
		if c.FullPath() == "/health/live" || c.FullPath() == "/health/ready" {
			write = l.Debugw
		}
		write("http request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
