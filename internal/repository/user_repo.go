package repository

import (
	"context"
	"errors"
	"fmt"

	"user-management-backend/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindUserByEmail finds a user by normalized email
func (r *UserRepository) FindUserByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error) {
	q := r.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email))
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}

	var user models.User
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID finds a non-deleted user by id
func (r *UserRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CreateUserWithSession inserts user and its first refresh token record in
// one transaction. Only a duplicate email maps to ErrDuplicate.
func (r *UserRepository) CreateUserWithSession(ctx context.Context, user *models.User, session *models.RefreshToken) error {
	user.Email = models.NormalizeEmail(user.Email)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert user: %w", err)
		}
		session.UserID = user.ID
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("insert refresh token: %w", err)
		}
		return nil
	})
}

// UpdateUser applies the non-nil fields of upd to a non-deleted user
func (r *UserRepository) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	fields := map[string]any{}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Email != nil {
		fields["email"] = models.NormalizeEmail(*upd.Email)
	}
	if upd.PasswordHash != nil {
		fields["password_hash"] = *upd.PasswordHash
	}
	if upd.Role != nil {
		fields["role"] = *upd.Role
	}

	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Updates(fields)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return nil, ErrDuplicate
			}
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.FindUserByID(ctx, id)
}

// SoftDeleteUser flips the soft-delete flag on a non-deleted user
func (r *UserRepository) SoftDeleteUser(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns a page of non-deleted users, newest first, and the total count
func (r *UserRepository) ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.User{}).Where("is_deleted = ?", false)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}
