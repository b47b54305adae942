package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadhub/leadhub/internal/contexts"
	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/tracing"
)

// AccessLog logs requests that failed. Successful requests are logged at
// debug level only.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()

		var errMsgs []string
		for _, e := range c.Errors {
			errMsgs = append(errMsgs, e.Error())
		}

		for _, e := range contexts.GetErrors(ctx) {
			errMsgs = append(errMsgs, e.Error())
		}

		status := c.Writer.Status()

		fields := []log.Field{
			log.Int("status", status),
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Duration("latency", time.Since(start)),
			log.String("client_ip", c.ClientIP()),
		}

		if opName, ok := tracing.GetOperationName(ctx); ok {
			fields = append(fields, log.String("operation", opName))
		}

		if userID, ok := contexts.GetUserID(ctx); ok {
			fields = append(fields, log.String("user_id", userID))
		}

		if status < 400 && len(errMsgs) == 0 {
			log.Debug(ctx, "[ACCESS]", fields...)
			return
		}

		if len(errMsgs) > 0 {
			fields = append(fields, log.Strings("errors", errMsgs))
		}

		log.Error(ctx, "[ACCESS]", fields...)
	}
}
