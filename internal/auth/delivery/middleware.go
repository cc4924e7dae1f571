package delivery

import (
	"net/http"
	"strings"

	"design-assistant-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer app token and scopes the request to
// the task it grants. Handlers reading :key must compare against taskKey.
func AuthMiddleware(authUsecase *usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		taskKey, accountID, err := authUsecase.ValidateAppToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("taskKey", taskKey)
		c.Set("accountID", accountID)
		c.Next()
	}
}

// RequireTaskScope rejects requests whose bearer token is scoped to a
// different task than the :key route parameter.
func RequireTaskScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.Param("key"); key != "" && key != c.GetString("taskKey") {
			c.JSON(http.StatusForbidden, gin.H{"error": "token not valid for this task"})
			c.Abort()
			return
		}
		c.Next()
	}
}
