// Package domain holds the ledger-adjacent records updated when a boleto
// reaches a terminal state.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPendente   Status = "pendente"
	StatusConciliado Status = "conciliado"
	StatusCancelado  Status = "cancelado"
)

type LancamentoFinanceiro struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	FaturaID   snowflake.ID      `gorm:"not null;index"`
	Status     Status            `gorm:"type:text;not null;default:'pendente'"`
	Ocorrencia *time.Time        `gorm:""`
	Valor      int64             `gorm:"not null"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LancamentoFinanceiro) TableName() string { return "lancamentos_financeiros" }
