package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"todonotify/internal/api"
	"todonotify/pkg/util"
)

func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		// store the caller so handlers and RequirePermission can use it
		c.Set(api.ContextUserID, claims.UserID)
		c.Set(api.ContextRole, claims.Role)

		c.Next()
	}
}
