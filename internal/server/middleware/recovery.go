package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/leadhub/leadhub/internal/log"
)

const internalErrorMessage = "server internal error, please try again later"

// Recovery turns a handler panic into a 500 JSON response and logs the stack.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.Error(c.Request.Context(), "panic recovered",
			log.Any("panic", recovered),
			log.String("stack", string(debug.Stack())),
		)

		abort(c, http.StatusInternalServerError, fmt.Errorf("panic: %v", recovered), internalErrorMessage)
	})
}
