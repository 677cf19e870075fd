package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/teskapnj/book-container/internal/auth"
)

const (
	// ContextKeyUserID holds the key for the caller's user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyVendorName holds the key for the caller's display name.
	ContextKeyVendorName = "vendorName"
	// ContextKeyVendorEmail holds the key for the caller's contact address.
	ContextKeyVendorEmail = "vendorEmail"
	// ContextKeyIsAdmin holds the key for admin status in Gin context.
	ContextKeyIsAdmin = "isAdmin"
)

func parseBearer(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := parseBearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyVendorName, claims.VendorName)
		c.Set(ContextKeyVendorEmail, claims.Email)
		c.Set(ContextKeyIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// OptionalAuthMiddleware parses credentials when present but lets guests
// through. The scan flow works unauthenticated against a shared guest draft.
func OptionalAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := parseBearer(c); ok {
			if claims, err := auth.ValidateJWT(tokenString, jwtSecret); err == nil {
				c.Set(ContextKeyUserID, claims.UserID)
				c.Set(ContextKeyVendorName, claims.VendorName)
				c.Set(ContextKeyVendorEmail, claims.Email)
				c.Set(ContextKeyIsAdmin, claims.IsAdmin)
			}
		}
		c.Next()
	}
}

// AdminMiddleware creates a Gin middleware to check for admin privileges.
// Assumes AuthMiddleware runs first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, exists := c.Get(ContextKeyIsAdmin)
		if !exists || !isAdmin.(bool) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}
