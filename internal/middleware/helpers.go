// internal/middleware/helpers.go
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// UserID returns the authenticated user's id, if any.
func UserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// UserRole returns the authenticated user's role, or "".
func UserRole(c *gin.Context) string {
	v, exists := c.Get(ctxUserRole)
	if !exists {
		return ""
	}
	role, _ := v.(string)
	return role
}

// UserTeam returns the authenticated user's team, or "".
func UserTeam(c *gin.Context) string {
	v, exists := c.Get(ctxUserTeam)
	if !exists {
		return ""
	}
	team, _ := v.(string)
	return team
}

// ActorName identifies the caller for audit entries. Falls back to "system"
// on unauthenticated paths.
func ActorName(c *gin.Context) string {
	if v, exists := c.Get("user_name"); exists {
		if name, ok := v.(string); ok && name != "" {
			return name
		}
	}
	if id, ok := UserID(c); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "system"
}
