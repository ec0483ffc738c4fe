package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	apperrors "user-management-backend/internal/errors"
	"user-management-backend/internal/models"
	"user-management-backend/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	auditPageSize   = 50
	// maxPage keeps (page-1)*limit within int.
	maxPage = math.MaxInt / maxPageSize
)

type UserService struct {
	users  UserStore
	audit  AuditStore
	hasher PasswordHasher
	logger *slog.Logger
}

func NewUserService(users UserStore, audit AuditStore, hasher PasswordHasher, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:  users,
		audit:  audit,
		hasher: hasher,
		logger: logger,
	}
}

type UpdateUserInput struct {
	Name     *string      `json:"name" validate:"omitempty,min=2,max=100"`
	Email    *string      `json:"email" validate:"omitempty,email,max=191"`
	Password *string      `json:"password" validate:"omitempty,min=6,pwbytes"`
	Role     *models.Role `json:"role" validate:"omitempty,oneof=user admin"`
}

// UserPage is one page of ListUsers.
type UserPage struct {
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
	Users []models.PublicUser `json:"users"`
}

// CreateUser creates a user on behalf of an admin
func (s *UserService) CreateUser(ctx context.Context, actor Actor, in RegisterInput) (*models.PublicUser, error) {
	if !RoleAllows(actor.Role, models.RoleAdmin) {
		return nil, apperrors.ForbiddenError("admin access required", nil)
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = models.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}

	if _, err := s.users.FindUserByEmail(ctx, in.Email, false); err == nil {
		return nil, apperrors.ConflictError("email already exists", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.InternalError("failed to look up user", err)
	}

	passwordHash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.InternalError("failed to hash password", err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         in.Role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ConflictError("email already exists", err)
		}
		return nil, apperrors.InternalError("failed to create user", err)
	}

	writeAudit(ctx, s.audit, s.logger, &user.ID, models.AuditUserCreate, fmt.Sprintf("Created by %s", actor.ID))

	pub := user.Public()
	return &pub, nil
}

// ListUsers returns non-deleted users, newest first
func (s *UserService) ListUsers(ctx context.Context, actor Actor, page, limit int) (*UserPage, error) {
	if !RoleAllows(actor.Role, models.RoleAdmin) {
		return nil, apperrors.ForbiddenError("admin access required", nil)
	}

	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	users, total, err := s.users.ListUsers(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, apperrors.InternalError("failed to list users", err)
	}

	out := make([]models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return &UserPage{Total: total, Page: page, Limit: limit, Users: out}, nil
}

// GetUser returns a user to an admin or to the user themself
func (s *UserService) GetUser(ctx context.Context, actor Actor, id string) (*models.PublicUser, error) {
	if !CanActOn(actor, id) {
		return nil, apperrors.ForbiddenError("access denied", nil)
	}

	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return nil, userLookupError(err)
	}
	pub := user.Public()
	return &pub, nil
}

// UpdateUser applies a partial update. Only admins may change roles.
func (s *UserService) UpdateUser(ctx context.Context, actor Actor, id string, in UpdateUserInput) (*models.PublicUser, error) {
	if !CanActOn(actor, id) {
		return nil, apperrors.ForbiddenError("access denied", nil)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Role != nil && !RoleAllows(actor.Role, models.RoleAdmin) {
		return nil, apperrors.ForbiddenError("only admins can change roles", nil)
	}

	upd := models.UserUpdate{Name: in.Name, Email: in.Email, Role: in.Role}
	if in.Password != nil {
		passwordHash, err := s.hasher.HashPassword(*in.Password)
		if err != nil {
			return nil, apperrors.InternalError("failed to hash password", err)
		}
		upd.PasswordHash = &passwordHash
	}

	if in.Email != nil {
		existing, err := s.users.FindUserByEmail(ctx, *in.Email, true)
		switch {
		case err == nil && existing.ID != id:
			return nil, apperrors.ConflictError("email already exists", nil)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.InternalError("failed to look up user", err)
		}
	}

	var (
		user *models.User
		err  error
	)
	if upd.Empty() {
		user, err = s.users.FindUserByID(ctx, id)
	} else {
		user, err = s.users.UpdateUser(ctx, id, upd)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ConflictError("email already exists", err)
		}
		return nil, userLookupError(err)
	}

	if !upd.Empty() {
		writeAudit(ctx, s.audit, s.logger, &id, models.AuditUserUpdate, fmt.Sprintf("Updated by %s", actor.ID))
	}

	pub := user.Public()
	return &pub, nil
}

// DeleteUser soft-deletes a user (admin only)
func (s *UserService) DeleteUser(ctx context.Context, actor Actor, id string) error {
	if !RoleAllows(actor.Role, models.RoleAdmin) {
		return apperrors.ForbiddenError("admin access required", nil)
	}

	if err := s.users.SoftDeleteUser(ctx, id); err != nil {
		return userLookupError(err)
	}

	writeAudit(ctx, s.audit, s.logger, &id, models.AuditUserDelete, fmt.Sprintf("Deleted by %s", actor.ID))
	return nil
}

// AuditTrail returns recent audit entries for a user (admin only)
func (s *UserService) AuditTrail(ctx context.Context, actor Actor, id string) ([]models.AuditLog, error) {
	if !RoleAllows(actor.Role, models.RoleAdmin) {
		return nil, apperrors.ForbiddenError("admin access required", nil)
	}
	if s.audit == nil {
		return []models.AuditLog{}, nil
	}

	logs, err := s.audit.ListAuditLogs(ctx, id, auditPageSize)
	if err != nil {
		return nil, apperrors.InternalError("failed to list audit logs", err)
	}
	return logs, nil
}

func userLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFoundError("user not found", err)
	}
	return apperrors.InternalError("failed to load user", err)
}
