package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"user-management-backend/internal/middleware"
	"user-management-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const serviceName = "user-management-backend"

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Auth           *AuthHandler
	Users          *UserHandler
	Verifier       middleware.AccessTokenVerifier
	AllowedOrigins []string
	Health         HealthCheck
	Logger         *slog.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger, time.Second))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.GET("/health", healthHandler(cfg.Health))

	// Auth routes (public)
	auth := r.Group("/auth")
	{
		auth.POST("/register", cfg.Auth.Register)
		auth.POST("/login", cfg.Auth.Login)
		auth.POST("/refresh", cfg.Auth.Refresh)
		auth.POST("/logout", cfg.Auth.Logout)
	}

	// User routes (authenticated)
	users := r.Group("/api/users")
	users.Use(middleware.AuthMiddleware(cfg.Verifier))
	{
		users.GET("", middleware.RequireAdmin(), cfg.Users.ListUsers)
		users.POST("", middleware.RequireAdmin(), cfg.Users.CreateUser)
		users.GET("/:id", middleware.RequireSelfOrAdmin("id"), cfg.Users.GetUser)
		users.PATCH("/:id", middleware.RequireSelfOrAdmin("id"), cfg.Users.UpdateUser)
		users.DELETE("/:id", middleware.RequireAdmin(), cfg.Users.DeleteUser)
		users.GET("/:id/audit", middleware.RequireAdmin(), cfg.Users.GetAuditTrail)
	}

	return r
}

func healthHandler(check HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				utils.ErrorResponse(c, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		utils.SuccessResponse(c, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	}
}
