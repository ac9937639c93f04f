package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"github.com/gin-gonic/gin"
)

const (
	statusBadRequest       = http.StatusBadRequest
	statusNotFound         = http.StatusNotFound
	statusMethodNotAllowed = http.StatusMethodNotAllowed
	statusUnprocessable    = http.StatusUnprocessableEntity
	statusInternal         = http.StatusInternalServerError
)

var errorMessages = map[int]string{
	statusBadRequest:       "bad request",
	statusNotFound:         "resource not found",
	statusMethodNotAllowed: "method not allowed",
	statusUnprocessable:    "unprocessable",
	statusInternal:         "internal server error",
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func abortWithError(c *gin.Context, status int, code string) {
	message, ok := errorMessages[status]
	if !ok {
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Success: false,
		Error:   status,
		Message: message,
		Code:    code,
	})
}

func abortWithAuthError(c *gin.Context, authErr *auth.AuthError) {
	c.AbortWithStatusJSON(authErr.StatusCode, errorResponse{
		Success: false,
		Error:   authErr.StatusCode,
		Message: authErr.Description,
		Code:    authErr.Code,
	})
}

// abortWithServiceError maps a drinks service failure onto the error taxonomy.
// Failures that are not typed service errors are treated as internal.
func abortWithServiceError(c *gin.Context, err error) {
	abortWithServiceErrorUsing(c, err, statusForKind)
}

func abortWithServiceErrorUsing(c *gin.Context, err error, mapKind func(drinks.ErrorKind) int) {
	var serviceErr *drinks.ServiceError
	if !errors.As(err, &serviceErr) {
		abortWithError(c, statusInternal, "")
		return
	}
	abortWithError(c, mapKind(serviceErr.Kind()), serviceErr.Code())
}

func statusForKind(kind drinks.ErrorKind) int {
	switch kind {
	case drinks.KindNotFound:
		return statusNotFound
	case drinks.KindInvalidInput, drinks.KindConflict, drinks.KindStorage:
		return statusUnprocessable
	default:
		return statusInternal
	}
}

// updateStatusForKind treats rejected patches as bad requests; only a missing drink keeps 404.
func updateStatusForKind(kind drinks.ErrorKind) int {
	switch kind {
	case drinks.KindInvalidInput, drinks.KindConflict:
		return statusBadRequest
	default:
		return statusForKind(kind)
	}
}

func handleNoRoute(c *gin.Context) {
	abortWithError(c, statusNotFound, "")
}

func handleNoMethod(c *gin.Context) {
	abortWithError(c, statusMethodNotAllowed, "")
}
