package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

const bearerScheme = "bearer"

var errMissingVerifier = errors.New("auth: verifier required")

// Claims is the verified payload of a bearer token.
type Claims struct {
	Subject     string
	Issuer      string
	Audience    []string
	Permissions []string
	ExpiresAt   time.Time
	IssuedAt    time.Time
	// permissionsPresent distinguishes an absent permissions claim from an empty one.
	permissionsPresent bool
}

// NewClaims builds claims carrying an explicit permissions list, mainly for fakes in tests.
func NewClaims(subject string, permissions ...string) Claims {
	return Claims{
		Subject:            subject,
		Permissions:        append([]string{}, permissions...),
		permissionsPresent: true,
	}
}

// HasPermission reports whether the permission is listed in the claims.
func (c Claims) HasPermission(permission string) bool {
	for _, granted := range c.Permissions {
		if granted == permission {
			return true
		}
	}
	return false
}

// Verifier verifies a raw bearer token and returns its claims.
// Authentication failures are returned as *AuthError; any other error is an internal failure.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, *AuthError) {
	if strings.TrimSpace(header) == "" {
		return "", errNoHeader()
	}
	// Exactly one space separates the scheme from the token.
	parts := strings.Split(header, " ")
	if strings.ToLower(parts[0]) != bearerScheme {
		return "", errInvalidHeader("Authorization header must start with \"Bearer\".", nil)
	}
	if len(parts) == 1 {
		return "", errInvalidHeader("Token not found.", nil)
	}
	if len(parts) > 2 {
		return "", errInvalidHeader("Authorization header must be bearer token.", nil)
	}
	if parts[1] == "" {
		return "", errInvalidHeader("Token not found.", nil)
	}
	return parts[1], nil
}

// CheckPermission confirms the claims grant the required permission.
func CheckPermission(required string, claims Claims) *AuthError {
	if !claims.permissionsPresent {
		return errInvalidClaims("Permissions not included in JWT.", nil)
	}
	if !claims.HasPermission(required) {
		return errPermissionNotFound()
	}
	return nil
}

// Authorizer decides whether a request bearing an Authorization header may proceed.
type Authorizer struct {
	verifier Verifier
}

// NewAuthorizer wraps the verifier used for signature and claim validation.
func NewAuthorizer(verifier Verifier) (*Authorizer, error) {
	if verifier == nil {
		return nil, errMissingVerifier
	}
	return &Authorizer{verifier: verifier}, nil
}

// Authorize extracts, verifies and permission-checks the bearer token.
func (a *Authorizer) Authorize(ctx context.Context, header string, permission string) (Claims, error) {
	token, authErr := BearerToken(header)
	if authErr != nil {
		return Claims{}, authErr
	}
	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return Claims{}, err
	}
	if authErr := CheckPermission(permission, claims); authErr != nil {
		return Claims{}, authErr
	}
	return claims, nil
}
