package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/objects"
	"github.com/leadhub/leadhub/internal/server/biz"
)

// JSONError returns a JSON error response and adds the error to gin context for access logging.
func JSONError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(status),
			Message: err.Error(),
		},
	})
}

// JSONBizError maps a biz error to its status. Validation, not-found and
// conflict errors carry their message; other failures only expose their
// category while the full error goes to the access log.
func JSONBizError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrValidation):
		JSONError(c, http.StatusBadRequest, err)
	case errors.Is(err, biz.ErrNotFound):
		JSONError(c, http.StatusNotFound, err)
	case errors.Is(err, biz.ErrAlreadyExists), errors.Is(err, biz.ErrDrainInProgress):
		JSONError(c, http.StatusConflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		jsonCategory(c, http.StatusServiceUnavailable, err, errRequestTimeout)
	case errors.Is(err, biz.ErrDelivery):
		jsonCategory(c, http.StatusServiceUnavailable, err, biz.ErrDelivery)
	case errors.Is(err, biz.ErrStorage):
		jsonCategory(c, http.StatusInternalServerError, err, biz.ErrStorage)
	default:
		log.Error(c.Request.Context(), "unexpected error", log.Cause(err))
		jsonCategory(c, http.StatusInternalServerError, err, biz.ErrInternal)
	}
}

var (
	errRequestTimeout = errors.New("request timed out")
	errInvalidLimit   = errors.New("limit must be a positive integer")
)

func jsonCategory(c *gin.Context, status int, err, public error) {
	_ = c.Error(err)
	c.JSON(status, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(status),
			Message: public.Error(),
		},
	})
}
