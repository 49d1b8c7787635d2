package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/financeiro/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByFatura(ctx context.Context, db *gorm.DB, faturaID snowflake.ID) ([]domain.LancamentoFinanceiro, error) {
	var items []domain.LancamentoFinanceiro
	err := db.WithContext(ctx).Raw(
		`SELECT *
		 FROM lancamentos_financeiros
		 WHERE fatura_id = ?
		 ORDER BY id ASC`,
		faturaID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.LancamentoFinanceiro) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, item *domain.LancamentoFinanceiro) error {
	return db.WithContext(ctx).Save(item).Error
}
