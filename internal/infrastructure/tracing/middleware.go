package tracing

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

// HeaderTraceID carries the trace id on HTTP requests and responses.
const HeaderTraceID = "X-Trace-ID"

// HTTPMiddleware creates Gin middleware for HTTP tracing
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := c.GetHeader(HeaderTraceID); traceID != "" {
			ctx = WithTraceID(ctx, TraceID(traceID))
		}

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, string(span.TraceID))

		c.Next()

		status := c.Writer.Status()
		span.SetTag("http.status", strconv.Itoa(status))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		} else if status >= 500 {
			span.SetError(errors.New("server error"))
		}
		tracer.Submit(span)
	}
}
