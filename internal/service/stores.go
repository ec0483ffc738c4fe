package service

//go:generate mockgen -source=stores.go -destination=mocks/mock_stores.go -package=mocks

import (
	"context"
	"time"

	"user-management-backend/internal/models"
)

// UserStore persists users. Lookups exclude soft-deleted users unless asked.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	// CreateUserWithSession stores a new user together with its first
	// refresh token record; either both are stored or neither is.
	CreateUserWithSession(ctx context.Context, user *models.User, session *models.RefreshToken) error
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	SoftDeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error)
}

// RefreshTokenStore persists refresh token records by their at-rest hash.
type RefreshTokenStore interface {
	FindRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RevokeRefreshToken must only succeed for an unrevoked record and
	// return repository.ErrAlreadyModified otherwise.
	RevokeRefreshToken(ctx context.Context, hash string, replacedBy *string) error
	// RotateRefreshToken revokes oldHash (conditionally, as above, and only
	// while unexpired at now) before or atomically with inserting next.
	RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken, now time.Time) error
}

// AuditStore records security-relevant actions.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, userID *string, action string, details string) error
	ListAuditLogs(ctx context.Context, userID string, limit int) ([]models.AuditLog, error)
}

// ExpiredTokenPurger deletes refresh token records that are past expiry.
type ExpiredTokenPurger interface {
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// PasswordHasher is the slow, salted one-way hash for login passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePassword(hashedPassword, password string) bool
}

// LoginLimiter throttles failed logins per identifier.
type LoginLimiter interface {
	Check(ctx context.Context, key string) error
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
