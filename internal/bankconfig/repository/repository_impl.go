package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/bankconfig/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Resolve(ctx context.Context, db *gorm.DB, bankCode, environment string) (*domain.BankAPIConfig, error) {
	var item domain.BankAPIConfig
	err := db.WithContext(ctx).Raw(
		`SELECT *
		 FROM bank_api_configs
		 WHERE bank_code = ? AND environment = ?
		 ORDER BY active DESC, updated_at DESC
		 LIMIT 1`,
		bankCode,
		environment,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrConfigNotFound
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cfg *domain.BankAPIConfig) error {
	return db.WithContext(ctx).Create(cfg).Error
}

func (r *repo) SaveToken(ctx context.Context, db *gorm.DB, id snowflake.ID, token string, expiresAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE bank_api_configs
		 SET access_token = ?, token_expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		token,
		expiresAt,
		time.Now().UTC(),
		id,
	).Error
}
