package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sitesync/internal/core/apperror"
	"sitesync/internal/infrastructure/transport/wirecodec"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the Gin context and aborts the request.
// The JSON answer is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Accepted sends 202 response with data.
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}

// Wire sends data as JSON, zstd compressed when the client accepts it.
func (h *BaseHandler) Wire(c *gin.Context, data any) {
	compress := wirecodec.AcceptsZstd(c.GetHeader("Accept-Encoding"))
	body, err := wirecodec.Marshal(data, compress)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	if compress {
		c.Header("Content-Encoding", wirecodec.EncodingZstd)
		c.Header("Vary", "Accept-Encoding")
	}
	c.Data(http.StatusOK, "application/json", body)
}
