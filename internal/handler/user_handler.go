package handler

import (
	"log/slog"
	"strconv"

	apperrors "user-management-backend/internal/errors"
	"user-management-backend/internal/middleware"
	"user-management-backend/internal/service"
	"user-management-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService *service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// ListUsers returns a page of users. Query: ?page=1&limit=10
func (h *UserHandler) ListUsers(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	res, err := h.userService.ListUsers(c.Request.Context(), actor, page, limit)
	if err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}
	utils.SuccessResponse(c, res)
}

// CreateUser creates a user (admin only)
func (h *UserHandler) CreateUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, apperrors.ValidationError(invalidBodyMessage, nil, err), h.logger)
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), actor, req)
	if err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}
	utils.CreatedResponse(c, user)
}

// GetUser returns a single user
func (h *UserHandler) GetUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}
	utils.SuccessResponse(c, user)
}

// UpdateUser applies a partial update to a user
func (h *UserHandler) UpdateUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req service.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, apperrors.ValidationError(invalidBodyMessage, nil, err), h.logger)
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}
	utils.SuccessResponse(c, user)
}

// DeleteUser soft-deletes a user (admin only)
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), actor, c.Param("id")); err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}
	utils.MessageResponse(c, "User deleted successfully")
}

// GetAuditTrail returns recent audit entries for a user (admin only)
func (h *UserHandler) GetAuditTrail(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	logs, err := h.userService.AuditTrail(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}
	utils.SuccessResponse(c, logs)
}

func (h *UserHandler) actor(c *gin.Context) (service.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.AppErrorResponse(c, apperrors.UnauthorizedError("Authentication required", nil), h.logger)
	}
	return actor, ok
}
