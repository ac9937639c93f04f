package auth

import (
	"fmt"
	"net/http"
)

// Authorization failure codes exposed to clients.
const (
	CodeNoHeader      = "no_header"
	CodeInvalidHeader = "invalid_header"
	CodeTokenExpired  = "token_expired"
	CodeInvalidClaims = "invalid_claims"
	CodeUnauthorized  = "unauthorized"
)

// AuthError describes why a request failed authentication or authorization.
type AuthError struct {
	Code        string
	Description string
	StatusCode  int
	cause       error
}

func (e *AuthError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("auth: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("auth: %s: %s: %v", e.Code, e.Description, e.cause)
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

func newAuthError(code, description string, cause error) *AuthError {
	return &AuthError{
		Code:        code,
		Description: description,
		StatusCode:  http.StatusUnauthorized,
		cause:       cause,
	}
}

func errNoHeader() *AuthError {
	return newAuthError(CodeNoHeader, "Authorization header is expected.", nil)
}

func errInvalidHeader(description string, cause error) *AuthError {
	return newAuthError(CodeInvalidHeader, description, cause)
}

func errTokenExpired(cause error) *AuthError {
	return newAuthError(CodeTokenExpired, "Token expired.", cause)
}

func errInvalidClaims(description string, cause error) *AuthError {
	return newAuthError(CodeInvalidClaims, description, cause)
}

func errPermissionNotFound() *AuthError {
	return newAuthError(CodeUnauthorized, "Permission not found.", nil)
}
