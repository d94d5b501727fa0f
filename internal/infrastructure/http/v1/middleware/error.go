package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sitesync/internal/core/apperror"
	"sitesync/internal/infrastructure/http/v1/dto"
	"sitesync/pkg/logger"
)

// ErrorHandler renders the last handler error as JSON. Internal causes are
// logged and never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			c.JSON(appErr.HTTPStatus, dto.FromAppError(appErr))
			return
		}

		logger.Error(c.Request.Context(), "unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, dto.Internal(c.GetString(KeyRequestID)))
	}
}
