package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sitesync/internal/core/apperror"
	"sitesync/internal/infrastructure/transport/wirecodec"
)

// maxRequestBody bounds a compressed request body.
const maxRequestBody = 64 << 20

// Decompress replaces a zstd request body with its decoded form so handlers
// can bind JSON as usual.
func Decompress() gin.HandlerFunc {
	return func(c *gin.Context) {
		encoding := c.GetHeader("Content-Encoding")
		if encoding == "" || encoding == "identity" {
			c.Next()
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
		if err != nil {
			_ = c.Error(apperror.NewValidation("unreadable request body").WithCause(err))
			c.Abort()
			return
		}
		decoded, err := wirecodec.Decode(raw, encoding)
		if err != nil {
			_ = c.Error(apperror.NewValidation("cannot decode request body").
				WithDetail("content_encoding", encoding).
				WithCause(err))
			c.Abort()
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(decoded))
		c.Request.ContentLength = int64(len(decoded))
		c.Request.Header.Del("Content-Encoding")
		c.Next()
	}
}
