package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions recorded by the services.
const (
	AuditRegister   = "user_registration"
	AuditLogin      = "user_login"
	AuditRefresh    = "token_refresh"
	AuditLogout     = "user_logout"
	AuditUserCreate = "user_create"
	AuditUserUpdate = "user_update"
	AuditUserDelete = "user_delete"
)

// AuditLog represents the audit_logs table
// UserID is the account the entry is about. Admin actions name the actor in Details.
type AuditLog struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID    *string   `gorm:"size:36;index" bson:"user_id,omitempty" json:"user_id"`
	Action    string    `gorm:"size:100;not null" bson:"action" json:"action"`
	Details   string    `gorm:"type:text" bson:"details" json:"details"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// TableName specifies the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate assigns a UUID when the caller did not.
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
