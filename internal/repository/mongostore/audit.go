package mongostore

import (
	"context"
	"fmt"

	"user-management-backend/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CreateAuditLog creates a new audit log entry
func (s *Store) CreateAuditLog(ctx context.Context, userID *string, action string, details string) error {
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: s.now(),
	}
	if _, err := s.audit.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the most recent entries for a user, newest first
func (s *Store) ListAuditLogs(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.audit.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}

	logs := []models.AuditLog{}
	if err := cur.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decode audit logs: %w", err)
	}
	return logs, nil
}
