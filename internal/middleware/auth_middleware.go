package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/policy"
)

const principalKey = "principal"

// Authenticator resolves a bearer token to a principal, or nil when the token
// is missing, malformed or expired.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) *policy.Principal
}

// PrincipalMiddleware attaches the caller's principal when the request carries
// a valid bearer token. Requests without one continue as anonymous.
func PrincipalMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			if p := auth.Authenticate(c.Request.Context(), strings.TrimSpace(token)); p != nil {
				c.Set(principalKey, p)
			}
		}
		c.Next()
	}
}

// GetPrincipal returns the authenticated caller, or nil for anonymous requests.
func GetPrincipal(c *gin.Context) *policy.Principal {
	p, exists := c.Get(principalKey)
	if !exists {
		return nil
	}
	return p.(*policy.Principal)
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetPrincipal(c) == nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Authentication required.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRoles admits authenticated callers holding one of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Authentication required.")
			c.Abort()
			return
		}
		for _, role := range roles {
			if p.Role == role {
				c.Next()
				return
			}
		}
		helpers.RespondWithError(c, http.StatusForbidden, "Insufficient role for this resource.")
		c.Abort()
	}
}
