package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrConfigNotFound = errors.New("bank_config_not_found")
	ErrAuthFailed     = errors.New("bank_auth_failed")
)

type Repository interface {
	Resolve(ctx context.Context, db *gorm.DB, bankCode, environment string) (*BankAPIConfig, error)
	Insert(ctx context.Context, db *gorm.DB, cfg *BankAPIConfig) error
	SaveToken(ctx context.Context, db *gorm.DB, id snowflake.ID, token string, expiresAt time.Time) error
}
