package middleware

import (
	apperrors "user-management-backend/internal/errors"
	"user-management-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// RequireSelfOrAdmin allows admins, and users whose ID equals the path
// parameter named param.
func RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			abortWith(c, apperrors.UnauthorizedError("User not authenticated", nil))
			return
		}

		if !service.CanActOn(actor, c.Param(param)) {
			abortWith(c, apperrors.ForbiddenError("Access denied: you can only access your own account", nil))
			return
		}

		c.Next()
	}
}
