package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/boleto/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByFatura(ctx context.Context, db *gorm.DB, faturaID snowflake.ID) (*domain.Boleto, error) {
	var item domain.Boleto
	err := db.WithContext(ctx).Raw(
		`SELECT *
		 FROM fatura_boletos
		 WHERE fatura_id = ? AND status <> ?
		 ORDER BY id DESC
		 LIMIT 1`,
		faturaID,
		domain.StatusCancelado,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrBoletoNotFound
	}
	return &item, nil
}

func (r *repo) FindByExternalRef(ctx context.Context, db *gorm.DB, bankCode, ref string) (*domain.Boleto, error) {
	if ref == "" {
		return nil, domain.ErrBoletoNotFound
	}
	var item domain.Boleto
	err := db.WithContext(ctx).Raw(
		`SELECT *
		 FROM fatura_boletos
		 WHERE bank_code = ? AND external_id = ?
		 ORDER BY id DESC
		 LIMIT 1`,
		bankCode,
		ref,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID != 0 {
		return &item, nil
	}
	err = db.WithContext(ctx).Raw(
		`SELECT *
		 FROM fatura_boletos
		 WHERE bank_code = ? AND nosso_numero = ?
		 ORDER BY id DESC
		 LIMIT 1`,
		bankCode,
		ref,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrBoletoNotFound
	}
	return &item, nil
}

func (r *repo) LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Boleto, error) {
	query := `SELECT *
	 FROM fatura_boletos
	 WHERE id = ?`
	// sqlite serializes writers on its own and rejects FOR UPDATE.
	if tx.Dialector.Name() == "postgres" {
		query += ` FOR UPDATE`
	}
	var item domain.Boleto
	if err := tx.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrBoletoNotFound
	}
	return &item, nil
}

func (r *repo) ClaimForReconciliation(ctx context.Context, tx *gorm.DB, bankCode string, syncedBefore time.Time, limit int) ([]domain.Boleto, error) {
	query := `SELECT *
	 FROM fatura_boletos
	 WHERE bank_code = ?
	   AND status IN (?, ?)
	   AND (last_synced_at IS NULL OR last_synced_at < ?)
	 ORDER BY vencimento DESC
	 LIMIT ?`
	if tx.Dialector.Name() == "postgres" {
		query += ` FOR UPDATE SKIP LOCKED`
	}
	var items []domain.Boleto
	err := tx.WithContext(ctx).Raw(query,
		bankCode,
		domain.StatusPendente,
		domain.StatusRegistrado,
		syncedBefore,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, boleto *domain.Boleto) error {
	return db.WithContext(ctx).Create(boleto).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, boleto *domain.Boleto) error {
	boleto.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(boleto).Error
}
