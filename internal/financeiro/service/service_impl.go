package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	boletodomain "github.com/smallbiznis/cobranca/internal/boleto/domain"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/financeiro/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		log:   p.Log.Named("financeiro.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// SyncFromBoleto aligns the fatura's financial transactions with a boleto
// that reached a terminal state. Runs inside the caller's transaction so it
// commits or rolls back with the boleto update.
func (s *Service) SyncFromBoleto(ctx context.Context, tx *gorm.DB, faturaID snowflake.ID, boleto *boletodomain.Boleto) error {
	if boleto == nil || !boleto.IsTerminal() {
		return nil
	}

	items, err := s.repo.FindByFatura(ctx, tx, faturaID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	now := s.clock.Now()
	for i := range items {
		item := &items[i]
		switch boleto.Status {
		case boletodomain.StatusPago:
			item.Status = domain.StatusConciliado
			if boleto.LiquidadoEm != nil {
				ocorrencia := *boleto.LiquidadoEm
				item.Ocorrencia = &ocorrencia
			}
		case boletodomain.StatusCancelado:
			item.Status = domain.StatusCancelado
		}
		mergeTrail(item, boleto, now)
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		s.log.Info("lancamento synced from boleto",
			zap.Int64("lancamento_id", int64(item.ID)),
			zap.Int64("fatura_id", int64(faturaID)),
			zap.String("status", string(item.Status)),
		)
	}
	return nil
}

// mergeTrail appends the sync record without discarding metadata written by
// earlier syncs or other systems.
func mergeTrail(item *domain.LancamentoFinanceiro, boleto *boletodomain.Boleto, now time.Time) {
	if item.Metadata == nil {
		item.Metadata = map[string]any{}
	}
	trail, _ := item.Metadata["boleto_sync"].([]any)
	trail = append(trail, map[string]any{
		"boleto_id":     boleto.ID.String(),
		"boleto_status": string(boleto.Status),
		"synced_at":     now.UTC().Format(time.RFC3339),
	})
	item.Metadata["boleto_sync"] = trail
}
