package middleware

import (
	"strings"

	apperrors "user-management-backend/internal/errors"
	"user-management-backend/internal/models"
	"user-management-backend/internal/service"
	"user-management-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// AccessTokenVerifier resolves an access token to the calling user.
type AccessTokenVerifier interface {
	VerifyAccessToken(raw string) (service.Actor, error)
}

// AuthMiddleware validates JWT access token from Authorization header
func AuthMiddleware(verifier AccessTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, apperrors.UnauthorizedError("Authorization header required", nil))
			return
		}

		scheme, raw, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			abortWith(c, apperrors.UnauthorizedError("Invalid authorization format. Use: Bearer <token>", nil))
			return
		}

		actor, err := verifier.VerifyAccessToken(strings.TrimSpace(raw))
		if err != nil {
			abortWith(c, err)
			return
		}

		c.Set(ContextUserID, actor.ID)
		c.Set(ContextRole, actor.Role)

		c.Next()
	}
}

// RequireRole lets the request through only when the caller holds role.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			abortWith(c, apperrors.UnauthorizedError("Authentication required", nil))
			return
		}

		if !service.RoleAllows(actor.Role, role) {
			abortWith(c, apperrors.ForbiddenError("Admin access required", nil))
			return
		}

		c.Next()
	}
}

// RequireAdmin checks if the authenticated user has admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// ActorFromContext returns the caller stored by AuthMiddleware.
func ActorFromContext(c *gin.Context) (service.Actor, bool) {
	id := c.GetString(ContextUserID)
	if id == "" {
		return service.Actor{}, false
	}
	role, ok := c.Get(ContextRole)
	if !ok {
		return service.Actor{}, false
	}
	r, ok := role.(models.Role)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{ID: id, Role: r}, true
}

func abortWith(c *gin.Context, err error) {
	utils.AppErrorResponse(c, err, nil)
	c.Abort()
}
