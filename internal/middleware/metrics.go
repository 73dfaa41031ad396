package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type APIObserver interface {
	ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64)
}

// APIMetrics records per-route latency. Unmatched routes are reported as "unknown".
func APIMetrics(observer APIObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		observer.ObserveAPIEndpointDuration(path, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
