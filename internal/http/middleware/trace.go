package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader echoes the request's trace id in a response header so callers
// can reference it in support tickets. No-op when tracing is off.
func TraceHeader(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if span := trace.SpanContextFromContext(c.Request.Context()); span.HasTraceID() {
			c.Header(header, span.TraceID().String())
		}
		c.Next()
	}
}
