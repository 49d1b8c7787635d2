// Package domain contains the boleto lifecycle model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPendente   Status = "pendente"
	StatusRegistrado Status = "registrado"
	StatusPago       Status = "pago"
	StatusCancelado  Status = "cancelado"
)

// Boleto is one registration attempt of a fatura at the bank. A fatura can
// accumulate several rows over time (reissue after cancellation), but at most
// one non-cancelled row is live.
type Boleto struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	FaturaID        snowflake.ID   `gorm:"not null;index"`
	BankCode        string         `gorm:"type:text;not null"`
	ExternalID      string         `gorm:"type:text;index"`
	NossoNumero     string         `gorm:"type:text;index"`
	NumeroDocumento string         `gorm:"type:text"`
	LinhaDigitavel  string         `gorm:"type:text"`
	CodigoBarras    string         `gorm:"type:text"`
	Valor           int64          `gorm:"not null"`
	Vencimento      time.Time      `gorm:"not null"`
	Status          Status         `gorm:"type:text;not null;default:'pendente'"`
	ValorPago       int64          `gorm:"not null;default:0"`
	RegistradoEm    *time.Time     `gorm:""`
	LiquidadoEm     *time.Time     `gorm:""`
	PDFURL          string         `gorm:"column:pdf_url;type:text"`
	LastSyncedAt    *time.Time     `gorm:""`
	RequestPayload  datatypes.JSON `gorm:"type:jsonb"`
	ResponsePayload datatypes.JSON `gorm:"type:jsonb"`
	WebhookPayload  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Boleto) TableName() string { return "fatura_boletos" }

// IsTerminal reports whether no further status change is expected.
func (b *Boleto) IsTerminal() bool {
	return b.Status == StatusPago || b.Status == StatusCancelado
}

// CanTransitionTo enforces the monotonic lifecycle. Paid is final and a
// cancellation is only valid before settlement.
func (b *Boleto) CanTransitionTo(next Status) bool {
	if b.Status == next {
		return false
	}
	switch b.Status {
	case StatusPendente:
		return next == StatusRegistrado || next == StatusPago || next == StatusCancelado
	case StatusRegistrado:
		return next == StatusPago || next == StatusCancelado
	default:
		return false
	}
}
