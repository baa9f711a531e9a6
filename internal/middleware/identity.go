package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Authentication happens upstream; the gateway forwards the verified
// principal in these headers. This service only extracts and scopes it.
const (
	userIDHeader   = "X-User-Id"
	userRoleHeader = "X-User-Role"

	ContextUserID   = "current_user_id"
	ContextUserRole = "current_user_role"
)

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Identity requires a gateway-asserted user id on every request in the
// group and stashes it in the gin context.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_identity"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUserRole, c.GetHeader(userRoleHeader))

		c.Next()
	}
}

// RequireAdmin gates admin routes on the gateway-asserted role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		if role != RoleAdmin && role != RoleSuperAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_required"})
			return
		}
		c.Next()
	}
}
