package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Fatura, error) {
	var item domain.Fatura
	err := db.WithContext(ctx).Raw(
		`SELECT *
		 FROM faturas
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrFaturaNotFound
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, fatura *domain.Fatura) error {
	return db.WithContext(ctx).Create(fatura).Error
}

func (r *repo) MarkPaga(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, paidAt time.Time, method string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE faturas
		 SET status = ?, valor_pago = ?, pago_em = ?, metodo_pagamento = ?, updated_at = ?
		 WHERE id = ?`,
		domain.FaturaStatusPaga,
		amount,
		paidAt,
		method,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) MarkCancelada(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE faturas
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status <> ?`,
		domain.FaturaStatusCancelada,
		time.Now().UTC(),
		id,
		domain.FaturaStatusPaga,
	).Error
}

func (r *repo) SetBoletoRef(ctx context.Context, db *gorm.DB, id snowflake.ID, nossoNumero, boletoURL string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE faturas
		 SET nosso_numero = ?, boleto_url = ?, updated_at = ?
		 WHERE id = ?`,
		nossoNumero,
		boletoURL,
		time.Now().UTC(),
		id,
	).Error
}
