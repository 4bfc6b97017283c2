package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/internal/auth"
)

// Authenticate verifies the bearer token, loads the user and stores it on the
// request context. Inactive users are rejected.
func Authenticate(authService *auth.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "access denied, no token provided"})
			return
		}

		userID, err := authService.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, err := authService.GetProfile(c.Request.Context(), userID)
		if err != nil || !user.IsActive {
			if err != nil {
				logger.Warn("authentication lookup failed", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token or user not found"})
			return
		}

		c.Set(auth.ContextUserKey, user)
		c.Next()
	}
}
