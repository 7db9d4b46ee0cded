package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/creditflow_server/internal/pkg/metrics"
)

// Metrics 记录请求数与耗时，按路由模板聚合
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
