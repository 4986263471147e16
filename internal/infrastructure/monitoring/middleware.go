package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route template keeps label cardinality bounded (/api/runs/:id).
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures REST call duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	method  string
	route   string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, method, route string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		method:  method,
		route:   route,
	}
}

// Stop stops the timer and records the call with its status
func (t *Timer) Stop(status string) time.Duration {
	duration := time.Since(t.start)
	t.metrics.RecordAPICall(t.method, t.route, status, duration)
	return duration
}
