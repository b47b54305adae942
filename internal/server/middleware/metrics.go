package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// WithMetrics records request count and latency per route and status.
func WithMetrics() gin.HandlerFunc {
	meter := otel.Meter("github.com/leadhub/leadhub/internal/server/middleware")

	requests, _ := meter.Int64Counter("leadhub.http.requests",
		metric.WithDescription("HTTP requests served"),
	)
	latency, _ := meter.Float64Histogram("leadhub.http.latency",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"),
	)

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", c.FullPath()),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		)

		ctx := c.Request.Context()
		requests.Add(ctx, 1, attrs)
		latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	}
}
