package middleware

import (
	"net/http"

	"ordertrack/internal/modules/access"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole admits callers whose role is in roles. It must run after
// JWTAuth.
func RequireAnyRole(roles access.RoleSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}
		if !roles.Has(id.Role) {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminOnly restricts a group to user administrators.
func AdminOnly() gin.HandlerFunc {
	return RequireAnyRole(access.UserAdmins)
}
