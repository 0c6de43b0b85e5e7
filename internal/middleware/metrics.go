package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ignas/schooltool.lyceum/internal/service"
)

// unmatchedRoute labels requests no route matched, keeping scanner noise
// from creating one series per probed path.
const unmatchedRoute = "unmatched"

// Metrics returns middleware that records request metrics on metricsSvc.
// Scrapes of /metrics itself are not counted.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		switch path {
		case "/metrics":
			return
		case "":
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
