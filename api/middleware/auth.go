package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxUserIDLength = 36

// UserMiddleware берет действующего пользователя из заголовка X-User-ID.
// Аутентификация выполняется снаружи (шлюз), сюда приходит уже проверенный id.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required: provide X-User-ID header"})
			c.Abort()
			return
		}
		if len(userID) > maxUserIDLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid X-User-ID format"})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}
