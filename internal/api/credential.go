package api

import (
	"net/http" // HTTP status codes

	"commutepay/internal/credential" // Credential store

	"github.com/gin-gonic/gin" // Gin web framework
)

// GetCredentialHandler returns the commuter's active QR credential, issuing
// one on first request. The client renders the value as its QR payload.
func GetCredentialHandler(store *credential.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		cred, err := store.Current(userID.(uint))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credential"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"value":     cred.Value,    // Token to embed in the QR
			"issued_at": cred.IssuedAt, // Issue timestamp in milliseconds
		})
	}
}

// RotateCredentialHandler mints a fresh token, superseding the prior one.
func RotateCredentialHandler(store *credential.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		cred, err := store.Issue(userID.(uint))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rotate credential"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"value":     cred.Value,    // The new token
			"issued_at": cred.IssuedAt, // Issue timestamp in milliseconds
		})
	}
}
