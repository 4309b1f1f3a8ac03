// internal/middleware/auth_middleware.go
package middleware

import (
	"strings"

	"leadcrm-service/internal/pkg/jwt"
	"leadcrm-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
	ctxUserTeam = "user_team"
)

type AuthMiddleware struct {
	tokens *jwt.Manager
}

func NewAuthMiddleware(tokens *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Auth validates the bearer token and loads its claims into the context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, claims.Role)
		c.Set(ctxUserTeam, claims.TeamName)
		c.Next()
	}
}

// RequireRole lets the request through only when the user holds one of the
// given roles.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := UserRole(c)
		for _, r := range roles {
			if current == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient role")
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
