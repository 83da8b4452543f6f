package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RelaySecretHeader carries the shared secret of the notification relay.
const RelaySecretHeader = "X-Relay-Secret"

// WebhookToken rejects requests whose ?token= does not equal token with 403.
// An empty token disables the check.
func WebhookToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if !secretEqual(c.Query("token"), token) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// RelaySecret rejects requests without the matching X-Relay-Secret header with 401.
// An empty secret disables the check.
func RelaySecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		if !secretEqual(c.GetHeader(RelaySecretHeader), secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid relay secret"})
			return
		}
		c.Next()
	}
}

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
