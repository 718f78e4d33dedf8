package auth

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"schoolinfo/internal/apperr"
)

// CookieName is the session cookie set at login.
const CookieName = "access_token"

const claimsKey = "claims"

// SetClaims stores verified claims on the request context.
func SetClaims(c *gin.Context, claims Claims) {
	c.Set(claimsKey, claims)
}

// ClaimsFrom returns the claims placed by Authenticate or the console guard.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// TokenFrom reads the session cookie, falling back to a bearer header.
func TokenFrom(c *gin.Context) string {
	if v, err := c.Cookie(CookieName); err == nil && v != "" {
		return v
	}
	authz := c.GetHeader("Authorization")
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

// Authenticate enforces an HS256 session token on API routes.
func Authenticate(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := TokenFrom(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.NewBody(apperr.ErrUnauthorized.Error(), nil))
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.NewBody("invalid or expired session", nil))
			return
		}
		SetClaims(c, claims)
		c.Next()
	}
}

// RequireRoles rejects authenticated requests whose role is not listed.
func RequireRoles(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.NewBody(apperr.ErrUnauthorized.Error(), nil))
			return
		}
		if !slices.Contains(roles, claims.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, apperr.NewBody(apperr.ErrForbidden.Error(), nil))
			return
		}
		c.Next()
	}
}
