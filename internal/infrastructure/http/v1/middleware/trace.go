package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "sitesync/internal/core/context"
)

// Headers read or written by the middleware.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderSiteID    = "X-Site-ID"
)

// Gin context keys.
const (
	KeyRequestID = "request_id"
	KeySiteID    = "site_id"
)

// Trace attaches a request id and the calling site to the request context.
// The request id is taken from the client when present.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = appctx.NewRequestID()
		}
		siteID := c.GetHeader(HeaderSiteID)

		ctx := appctx.WithRequest(c.Request.Context(), &appctx.RequestContext{
			RequestID: requestID,
			SiteID:    siteID,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Set(KeyRequestID, requestID)
		c.Set(KeySiteID, siteID)
		c.Header(HeaderRequestID, requestID)

		c.Next()
	}
}
