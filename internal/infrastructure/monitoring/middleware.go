package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for admin request metrics
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures an action execution
type Timer struct {
	start   time.Time
	metrics *Metrics
	remote  string
}

// NewTimer starts timing an action of remote
func NewTimer(metrics *Metrics, remote string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		remote:  remote,
	}
}

// Stop records the elapsed time under status
func (t *Timer) Stop(status string) time.Duration {
	elapsed := time.Since(t.start)
	t.metrics.RecordAction(t.remote, status, elapsed)
	return elapsed
}
