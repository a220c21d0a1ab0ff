package tracing

import (
	"github.com/gin-gonic/gin"
)

// HTTPMiddleware traces every request through tracer
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}

		span, ctx := tracer.StartSpan(c.Request.Context(), sanitize(c.GetHeader(HeaderRequestID)), c.Request.Method, name)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, span.RequestID.String())

		c.Next()

		tracer.Finish(span, c.Writer.Status())
	}
}
