package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-advisor-backend/internal/auth"
)

// Context keys populated by Auth.
const (
	CtxUserID = "userID"
	CtxRole   = "role"
	CtxEmail  = "email"
)

// TokenParser validates an access token. *auth.Issuer satisfies it.
type TokenParser interface {
	ParseAccess(token string) (*auth.Claims, error)
}

// BearerToken returns the token from "Authorization: Bearer <token>". A bare
// token without the scheme is accepted too, since mobile clients send both.
func BearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if h == "" {
		return ""
	}
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// Auth rejects requests without a valid access token and stores the caller's
// id, role and email in the Gin context.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		claims, err := tokens.ParseAccess(raw)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxEmail, claims.Email)
		c.Next()
	}
}

// RequireRole allows the request only when Auth stored one of roles.
// It must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[c.GetString(CtxRole)]; !ok {
			abortJSON(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id or "".
func UserID(c *gin.Context) string { return c.GetString(CtxUserID) }

// abortJSON writes the standard error envelope from inside middleware.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
