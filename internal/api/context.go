package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// currentUser aborts with 401 when the request carries no user.
func currentUser(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	userID, ok := v.(int64)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return userID, true
}
