package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadhub/leadhub/internal/objects"
)

// AbortWithError aborts with a JSON body carrying err's message.
func AbortWithError(c *gin.Context, status int, err error) {
	abort(c, status, err, err.Error())
}

// abort attaches cause to the gin context for the access log and answers with
// message, which may hide the cause from the client.
func abort(c *gin.Context, status int, cause error, message string) {
	_ = c.Error(cause)
	c.AbortWithStatusJSON(status, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(status),
			Message: message,
		},
	})
}
