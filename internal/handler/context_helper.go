package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/schedulrr/schedulrr-api/internal/middleware"
)

// currentClerkUserID extracts the authenticated external user id.
func currentClerkUserID(c *gin.Context) (string, bool) {
	claims, ok := middleware.CurrentUser(c)
	if !ok || claims.ClerkUserID() == "" {
		return "", false
	}
	return claims.ClerkUserID(), true
}
