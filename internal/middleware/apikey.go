package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyMiddleware guards the analysis API with a shared key
type APIKeyMiddleware struct {
	apiKey string
}

// NewAPIKeyMiddleware creates the middleware. An empty key disables the check.
func NewAPIKeyMiddleware(apiKey string) *APIKeyMiddleware {
	return &APIKeyMiddleware{apiKey: apiKey}
}

// Enabled reports whether requests must carry a key.
func (am *APIKeyMiddleware) Enabled() bool {
	return am.apiKey != ""
}

// RequireAPIKey accepts the key as a Bearer token or in X-API-Key.
func (am *APIKeyMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && am.ValidateKey(token) {
			c.Next()
			return
		}

		if am.ValidateKey(c.GetHeader("X-API-Key")) {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Valid API key required for this endpoint",
		})
		c.Abort()
	}
}

// ValidateKey compares key against the configured key in constant time
func (am *APIKeyMiddleware) ValidateKey(key string) bool {
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(am.apiKey)) == 1
}
