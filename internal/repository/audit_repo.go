package repository

import (
	"context"
	"fmt"

	"user-management-backend/internal/models"

	"gorm.io/gorm"
)

const maxAuditPage = 200

// AuditRepository stores the security audit trail. Entries are append-only.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog appends an entry. userID is nil for anonymous actions.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, userID *string, action string, details string) error {
	entry := &models.AuditLog{
		UserID:  userID,
		Action:  action,
		Details: details,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns up to limit entries about userID, newest first.
func (r *AuditRepository) ListAuditLogs(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > maxAuditPage {
		limit = maxAuditPage
	}

	logs := []models.AuditLog{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
