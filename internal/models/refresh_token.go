package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshToken represents the refresh_tokens table. TokenHash is the at-rest
// hash of the bearer token; the raw token is never stored.
type RefreshToken struct {
	ID             string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	TokenHash      string    `gorm:"not null;size:64;uniqueIndex" bson:"token_hash" json:"-"`
	UserID         string    `gorm:"not null;size:36;index" bson:"user_id" json:"user_id"`
	ExpiresAt      time.Time `gorm:"not null;index" bson:"expires_at" json:"expires_at"`
	Revoked        bool      `gorm:"not null;default:false" bson:"revoked" json:"revoked"`
	ReplacedByHash *string   `gorm:"size:64" bson:"replaced_by_hash,omitempty" json:"-"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// TableName specifies the table name for RefreshToken model
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// BeforeCreate assigns a UUID when the caller did not.
func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Live reports whether the record can still be exchanged at now.
func (t *RefreshToken) Live(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
