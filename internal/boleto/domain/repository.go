package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrBoletoNotFound    = errors.New("boleto_not_found")
	ErrInvalidTransition = errors.New("boleto_invalid_transition")
)

type Repository interface {
	// FindByFatura returns the newest non-cancelled boleto of the fatura,
	// or ErrBoletoNotFound.
	FindByFatura(ctx context.Context, db *gorm.DB, faturaID snowflake.ID) (*Boleto, error)

	// FindByExternalRef resolves a bank reference, matching external_id
	// first and nosso_numero second.
	FindByExternalRef(ctx context.Context, db *gorm.DB, bankCode, ref string) (*Boleto, error)

	// LockByID reloads the row FOR UPDATE. Must run inside a transaction.
	LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Boleto, error)

	// ClaimForReconciliation picks up to limit open boletos of bankCode
	// not synced since syncedBefore, newest due date first, skipping rows
	// locked by concurrent workers.
	ClaimForReconciliation(ctx context.Context, tx *gorm.DB, bankCode string, syncedBefore time.Time, limit int) ([]Boleto, error)

	Insert(ctx context.Context, db *gorm.DB, boleto *Boleto) error
	Update(ctx context.Context, db *gorm.DB, boleto *Boleto) error
}
