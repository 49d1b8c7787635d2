// Package domain contains the per-environment bank API credential records.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BankAPIConfig holds credentials and the cached access token for one
// bank_code/environment pair. Exactly one record should be active per pair.
type BankAPIConfig struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	BankCode       string            `gorm:"type:text;not null;index"`
	Environment    string            `gorm:"type:text;not null"`
	ClientID       string            `gorm:"type:text;not null"`
	ClientSecret   string            `gorm:"type:text;not null"`
	CertPath       string            `gorm:"type:text"`
	KeyPath        string            `gorm:"type:text"`
	AccessToken    string            `gorm:"type:text"`
	TokenExpiresAt *time.Time        `gorm:""`
	Active         bool              `gorm:"not null;default:false"`
	Settings       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BankAPIConfig) TableName() string { return "bank_api_configs" }

// TokenValid reports whether the cached token can still be used at now.
// A 60s skew guards against expiry mid-request.
func (c *BankAPIConfig) TokenValid(now time.Time) bool {
	if strings.TrimSpace(c.AccessToken) == "" || c.TokenExpiresAt == nil {
		return false
	}
	return c.TokenExpiresAt.After(now.Add(60 * time.Second))
}

// Setting returns a string value from the free-form settings blob.
func (c *BankAPIConfig) Setting(key string) string {
	if c.Settings == nil {
		return ""
	}
	value, ok := c.Settings[key]
	if !ok {
		return ""
	}
	typed, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(typed)
}
