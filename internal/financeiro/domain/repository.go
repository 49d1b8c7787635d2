package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByFatura(ctx context.Context, db *gorm.DB, faturaID snowflake.ID) ([]LancamentoFinanceiro, error)
	Insert(ctx context.Context, db *gorm.DB, item *LancamentoFinanceiro) error
	Update(ctx context.Context, db *gorm.DB, item *LancamentoFinanceiro) error
}
