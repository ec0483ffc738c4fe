package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user-management-backend/internal/models"
	"user-management-backend/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// FindRefreshTokenByHash finds a refresh token record by its at-rest hash
func (s *Store) FindRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var rec models.RefreshToken
	err := s.tokens.FindOne(ctx, bson.D{{Key: "token_hash", Value: hash}}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rec, nil
}

// CreateRefreshToken inserts a refresh token record
func (s *Store) CreateRefreshToken(ctx context.Context, rec *models.RefreshToken) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if _, err := s.tokens.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// RevokeRefreshToken marks an unrevoked record as revoked, or returns
// repository.ErrAlreadyModified.
func (s *Store) RevokeRefreshToken(ctx context.Context, hash string, replacedBy *string) error {
	return s.revokeWhereLive(ctx, hash, replacedBy, time.Time{})
}

// RotateRefreshToken revokes oldHash and then inserts next. There is no
// multi-document transaction: if the insert fails the old token stays revoked
// and the client has to log in again.
func (s *Store) RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken, now time.Time) error {
	if err := s.revokeWhereLive(ctx, oldHash, &next.TokenHash, now); err != nil {
		return err
	}
	if err := s.CreateRefreshToken(ctx, next); err != nil {
		return fmt.Errorf("insert rotated token: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes records whose expiry is at or before now.
// The TTL index does the same on the server's schedule.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.tokens.DeleteMany(ctx, bson.D{{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: now}}}})
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) revokeWhereLive(ctx context.Context, hash string, replacedBy *string, now time.Time) error {
	filter := bson.D{{Key: "token_hash", Value: hash}, {Key: "revoked", Value: false}}
	if !now.IsZero() {
		filter = append(filter, bson.E{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}})
	}

	set := bson.D{{Key: "revoked", Value: true}}
	if replacedBy != nil {
		set = append(set, bson.E{Key: "replaced_by_hash", Value: *replacedBy})
	}

	res, err := s.tokens.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if res.ModifiedCount == 0 {
		return repository.ErrAlreadyModified
	}
	return nil
}
