package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	applogger "github.com/C4erries/edumax/pkg/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	requestIDMaxLen = 64
)

// RequestID 请求追踪 ID
// 沿用上游网关的 X-Request-ID；缺失、过长或含非法字符时生成 UUID。
// ID 同时写入 gin.Context、请求 ctx（服务层日志）和响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}

		c.Set(requestIDKey, rid)
		c.Request = c.Request.WithContext(applogger.WithRequestID(c.Request.Context(), rid))
		c.Header(requestIDHeader, rid)

		c.Next()
	}
}

// validRequestID 只接受 [A-Za-z0-9._-]，避免日志注入
func validRequestID(rid string) bool {
	if rid == "" || len(rid) > requestIDMaxLen {
		return false
	}
	for i := 0; i < len(rid); i++ {
		ch := rid[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-' || ch == '_' || ch == '.':
		default:
			return false
		}
	}
	return true
}
