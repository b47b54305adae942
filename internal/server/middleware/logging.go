package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadhub/leadhub/internal/tracing"
)

const (
	DefaultTraceHeader   = "LH-Trace-Id"
	DefaultRequestHeader = "LH-Request-Id"

	maxTraceIDLength = 128
)

var errTraceIDTooLong = errors.New("trace id is too long")

// WithLoggingTracing save the trace ID and request ID to the request context.
// So the logger can log the trace ID and request ID in the next logs.
func WithLoggingTracing(config tracing.Config) gin.HandlerFunc {
	traceHeader := config.TraceHeader
	if traceHeader == "" {
		traceHeader = DefaultTraceHeader
	}

	requestHeader := config.RequestHeader
	if requestHeader == "" {
		requestHeader = DefaultRequestHeader
	}

	return func(c *gin.Context) {
		// Use the trace header from the request first.
		traceID := c.GetHeader(traceHeader)
		if len(traceID) > maxTraceIDLength {
			AbortWithError(c, http.StatusBadRequest, errTraceIDTooLong)
			return
		}

		if traceID == "" {
			traceID = tracing.GenerateTraceID()
		}

		requestID := tracing.GenerateRequestID()

		c.Header(traceHeader, traceID)
		c.Header(requestHeader, requestID)

		ctx := tracing.WithTraceID(c.Request.Context(), traceID)
		ctx = tracing.WithRequestID(ctx, requestID)
		ctx = tracing.WithOperationName(ctx, fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()))

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
