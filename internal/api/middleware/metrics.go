package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/C4erries/edumax/pkg/metrics"
)

// Metrics 记录请求数与耗时；route 使用路由模板，未匹配的请求记为 "unmatched"
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
