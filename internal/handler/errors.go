package handler

import (
	"errors"
	"net/http"

	"github.com/BloggingApp/currents-service/internal/dto"
	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/gin-gonic/gin"
)

var (
	errInvalidPostID    = errors.New("invalid post ID")
	errInvalidUserID    = errors.New("invalid user ID")
	errInvalidBody      = errors.New("invalid request body")
	errUsernameRequired = errors.New("Username is required")
	errTooManyRequests  = errors.New("too many requests, please slow down")
)

func statusOf(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindUnauthorized:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the error body for err. Only the message of a
// classified error reaches the client, never its cause.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	var appErr *model.Error
	if !errors.As(err, &appErr) || appErr.Kind == model.KindInternal {
		appErr = model.ErrInternal
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(statusOf(appErr.Kind), dto.ErrorResponse{
		Error:  appErr.Message,
		Fields: appErr.Fields,
	})
}

func (h *Handler) abortBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(err.Error()))
}
