package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user-management-backend/internal/models"

	"gorm.io/gorm"
)

type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepo(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// FindRefreshTokenByHash finds a refresh token by its hash, revoked or not
func (r *RefreshTokenRepository) FindRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

// CreateRefreshToken creates a new refresh token
func (r *RefreshTokenRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// RevokeRefreshToken marks an unrevoked token as revoked. It returns
// ErrAlreadyModified when no unrevoked row matched.
func (r *RefreshTokenRepository) RevokeRefreshToken(ctx context.Context, hash string, replacedBy *string) error {
	return revokeWhereLive(r.db.WithContext(ctx), hash, replacedBy, time.Time{})
}

// RotateRefreshToken revokes oldHash, pointing it at next, and inserts next in
// the same transaction. The revoke is a compare-and-set on revoked=false and
// expires_at > now, so concurrent rotations of one token have a single winner.
func (r *RefreshTokenRepository) RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := revokeWhereLive(tx, oldHash, &next.TokenHash, now); err != nil {
			return err
		}
		if err := tx.Create(next).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert rotated token: %w", err)
		}
		return nil
	})
}

// DeleteExpiredRefreshTokens removes rows whose expiry is at or before now
func (r *RefreshTokenRepository) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func revokeWhereLive(db *gorm.DB, hash string, replacedBy *string, now time.Time) error {
	fields := map[string]any{"revoked": true}
	if replacedBy != nil {
		fields["replaced_by_hash"] = *replacedBy
	}

	q := db.Model(&models.RefreshToken{}).Where("token_hash = ? AND revoked = ?", hash, false)
	if !now.IsZero() {
		q = q.Where("expires_at > ?", now)
	}

	res := q.Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("revoke refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyModified
	}
	return nil
}
