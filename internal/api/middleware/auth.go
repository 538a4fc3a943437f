package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const PrincipalKey = "principal"

// BearerAuth reads "Authorization: Bearer <token>" and stores the token as the
// caller's principal. With required set, requests without a token get 401.
// Anonymous callers have the empty principal.
func BearerAuth(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := bearerToken(c.GetHeader("Authorization"))
		if principal == "" && required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// Principal returns the caller set by BearerAuth, or "".
func Principal(c *gin.Context) string {
	return c.GetString(PrincipalKey)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
