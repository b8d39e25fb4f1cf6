package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/blogescolar/blog-api/internal/models"
	"github.com/blogescolar/blog-api/internal/sessions"
	"github.com/blogescolar/blog-api/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

const (
	principalKey = "principal"
	rawTokenKey  = "access_token"
)

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier.
// On success the raw claims are stored under "claims" and the caller under "principal".
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		if status, msg := authenticate(c, ver, auth); status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the principal when a valid token is present and lets
// anonymous requests through untouched.
func OptionalAuth(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); auth != "" {
			if status, msg := authenticate(c, ver, auth); status != 0 {
				c.AbortWithStatusJSON(status, gin.H{"error": msg})
				return
			}
		}
		c.Next()
	}
}

// Identify attaches the principal for valid bearer tokens and never rejects.
// It runs ahead of the rate limiter so buckets key on the caller; route-level
// AuthMiddleware still decides whether a request may proceed.
func Identify(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); auth != "" {
			_, _ = authenticate(c, ver, auth)
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, ver Verifier, auth string) (int, string) {
	// Expect 'Bearer <token>'
	var token string
	if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
		return http.StatusUnauthorized, "invalid Authorization header"
	}

	ctx := c.Request.Context()
	revoked, err := sessions.IsAccessTokenBlacklisted(ctx, token)
	if err != nil {
		logger.Errorf("blacklist lookup failed: %v", err)
		return http.StatusInternalServerError, "internal server error"
	}
	if revoked {
		return http.StatusUnauthorized, "token revoked"
	}

	verified, err := ver.Verify(ctx, token)
	if err != nil {
		return http.StatusUnauthorized, "invalid token"
	}

	var claims map[string]interface{}
	if err := verified.Claims(&claims); err != nil {
		return http.StatusUnauthorized, "failed to parse claims"
	}
	p := principalFromClaims(claims)
	if p.UserID == "" {
		return http.StatusUnauthorized, "token has no subject"
	}

	c.Set("claims", claims)
	c.Set(principalKey, p)
	c.Set(rawTokenKey, token)
	return 0, ""
}

func principalFromClaims(claims map[string]interface{}) models.Principal {
	str := func(k string) string {
		s, _ := claims[k].(string)
		return s
	}
	id := str("sub")
	if id == "" {
		id = str("id")
	}
	return models.Principal{
		UserID: id,
		Name:   str("name"),
		Email:  str("email"),
		Role:   models.NormalizeRole(str("role")),
	}
}

// PrincipalFrom returns the authenticated caller set by AuthMiddleware.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// RawToken returns the bearer token of an authenticated request.
func RawToken(c *gin.Context) string {
	return c.GetString(rawTokenKey)
}

// ClaimsExpiry returns the exp claim as unix seconds, or 0.
func ClaimsExpiry(c *gin.Context) int64 {
	v, ok := c.Get("claims")
	if !ok {
		return 0
	}
	cm, _ := v.(map[string]interface{})
	exp, _ := cm["exp"].(float64)
	return int64(exp)
}

// RequireRole rejects authenticated callers whose role is not listed.
// It must run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}
