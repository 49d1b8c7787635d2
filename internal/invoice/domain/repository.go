package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrFaturaNotFound = errors.New("fatura_not_found")
	ErrInvalidFatura  = errors.New("invalid_fatura")
)

// Repository persists invoices. Methods take the database handle so callers
// can pass a transaction when the invoice update must share the boleto's
// row lock.
type Repository interface {
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Fatura, error)
	Insert(ctx context.Context, db *gorm.DB, fatura *Fatura) error
	MarkPaga(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, paidAt time.Time, method string) error
	MarkCancelada(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	SetBoletoRef(ctx context.Context, db *gorm.DB, id snowflake.ID, nossoNumero, boletoURL string) error
}
