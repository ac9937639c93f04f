package server

import (
	"errors"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newRequestID() string {
	value, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return value.String()
}

func (h *httpHandler) assignRequestID(c *gin.Context) {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" || len(requestID) > 128 {
		requestID = h.requestIDGen()
	}
	c.Set(requestIDContextKey, requestID)
	c.Header(requestIDHeader, requestID)
	c.Next()
}

func (h *httpHandler) logRequest(c *gin.Context) {
	started := h.clock()
	c.Next()
	h.logger.Info("http request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("latency", h.clock().Sub(started)),
		zap.String("request_id", c.GetString(requestIDContextKey)))
}

func (h *httpHandler) recoverPanic(c *gin.Context, recovered any) {
	h.logger.Error("panic while handling request",
		zap.Any("panic", recovered),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(requestIDContextKey)))
	abortWithError(c, statusInternal, "")
}

// requirePermission gates a route on the bearer token carrying the permission.
func (h *httpHandler) requirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.authorizer.Authorize(c.Request.Context(), c.GetHeader("Authorization"), permission)
		if err != nil {
			var authErr *auth.AuthError
			if errors.As(err, &authErr) {
				h.logAuthFailure(c, authErr, permission)
				abortWithAuthError(c, authErr)
				return
			}
			h.logger.Error("token verification unavailable",
				zap.Error(err),
				zap.String("permission", permission),
				zap.String("request_id", c.GetString(requestIDContextKey)))
			abortWithError(c, statusInternal, "")
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

func (h *httpHandler) logAuthFailure(c *gin.Context, authErr *auth.AuthError, permission string) {
	fields := []zap.Field{
		zap.Error(authErr),
		zap.String("code", authErr.Code),
		zap.String("permission", permission),
		zap.String("request_id", c.GetString(requestIDContextKey)),
	}
	if authErr.Code == auth.CodeTokenExpired || authErr.Code == auth.CodeNoHeader {
		h.logger.Info("token validation failed", fields...)
		return
	}
	h.logger.Warn("token validation failed", fields...)
}

func claimsFromContext(c *gin.Context) (auth.Claims, bool) {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := value.(auth.Claims)
	return claims, ok
}

func subjectField(c *gin.Context) zap.Field {
	claims, _ := claimsFromContext(c)
	return zap.String("subject", claims.Subject)
}
