package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/C4erries/edumax/pkg/response"
)

const defaultMaxBodyBytes int64 = 1 << 20

// BodyLimit 请求体大小限制（server.max_body_bytes，<= 0 时取 1MB）
// Content-Length 已超限的请求直接返回 413；分块上传由 MaxBytesReader 在读取时截断，
// 处理器未写响应并通过 c.Error 上报 *http.MaxBytesError 时同样返回 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.PayloadTooLarge(c)
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.IsAborted() || c.Writer.Written() {
			return
		}
		for _, e := range c.Errors {
			var tooLarge *http.MaxBytesError
			if errors.As(e.Err, &tooLarge) {
				response.PayloadTooLarge(c)
				return
			}
		}
	}
}
