package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accessd/accessd/internal/access"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: code=%s, message=%s", e.Code, e.Message)
}

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, &APIError{
		Code:    code,
		Message: err.Error(),
	})
}

// AbortWithAccessError maps the engine's error taxonomy onto HTTP statuses.
func AbortWithAccessError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrValidation):
		AbortWithError(ctx, http.StatusBadRequest, CodeInvalidRequest, err)
	case errors.Is(err, access.ErrNotFound):
		AbortWithError(ctx, http.StatusNotFound, CodeNotFound, err)
	case errors.Is(err, access.ErrForbidden):
		AbortWithError(ctx, http.StatusForbidden, CodeForbidden, err)
	case errors.Is(err, access.ErrAccessDenied):
		AbortWithError(ctx, http.StatusForbidden, CodeAccessDenied, err)
	case errors.Is(err, access.ErrStorage):
		AbortWithError(ctx, http.StatusInternalServerError, CodeStorage, err)
	default:
		AbortWithError(ctx, http.StatusInternalServerError, CodeInternalError, err)
	}
}
