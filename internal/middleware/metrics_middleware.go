package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/eventhub/internal/observability"
)

// Metrics records request counts and latency per route template. Unmatched
// routes share one label value to keep cardinality bounded.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
