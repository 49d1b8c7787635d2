// Package domain contains persistence models for rental invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// FaturaStatus represents invoice lifecycle states.
type FaturaStatus string

const (
	FaturaStatusAberta    FaturaStatus = "Aberta"
	FaturaStatusPaga      FaturaStatus = "Paga"
	FaturaStatusCancelada FaturaStatus = "Cancelada"
)

// PaymentMethodBoleto is recorded when settlement comes from the bank slip.
const PaymentMethodBoleto = "Boleto"

// Fatura represents one billing period of a rental contract.
// Amounts are stored in centavos.
type Fatura struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	ContratoID      snowflake.ID      `gorm:"not null;index"`
	Competencia     string            `gorm:"type:text;not null"`
	Vencimento      time.Time         `gorm:"not null"`
	Status          FaturaStatus      `gorm:"type:text;not null;default:'Aberta'"`
	ValorTotal      int64             `gorm:"not null;default:0"`
	ValorPago       int64             `gorm:"not null;default:0"`
	PagoEm          *time.Time        `gorm:""`
	MetodoPagamento string            `gorm:"type:text"`
	NossoNumero     string            `gorm:"type:text"`
	BoletoURL       string            `gorm:"type:text"`
	PagadorNome     string            `gorm:"type:text;not null"`
	PagadorDocument string            `gorm:"column:pagador_documento;type:text;not null"`
	PagadorEmail    string            `gorm:"type:text"`
	PagadorEndereco datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Fatura) TableName() string { return "faturas" }

// IsPaga reports whether the invoice has already been settled.
func (f *Fatura) IsPaga() bool { return f.Status == FaturaStatusPaga }
