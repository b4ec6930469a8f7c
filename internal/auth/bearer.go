package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hudsor01/abuseguard/internal/models"
)

// BearerMiddleware guards the administrative surface with a static
// operator token. Every unauthorized request gets the same response
// regardless of which resource it asked for, so the surface never
// reveals whether a client or event exists.
func BearerMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !tokenEqual(presented, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				models.Err("UNAUTHORIZED", "valid bearer token required"))
			return
		}
		c.Next()
	}
}

// tokenEqual compares in constant time to keep the token from leaking
// through timing.
func tokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
