// Package webhook consumes inbound bank notifications and applies them to
// the boleto lifecycle.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	boletodomain "github.com/smallbiznis/cobranca/internal/boleto/domain"
	boletoservice "github.com/smallbiznis/cobranca/internal/boleto/service"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/event"
	"github.com/smallbiznis/cobranca/internal/sanitize"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProcessorParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Repo    boletodomain.Repository
	Gateway *boletoservice.Gateway
}

type Processor struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.Config
	repo    boletodomain.Repository
	gateway *boletoservice.Gateway
}

func NewProcessor(p ProcessorParams) *Processor {
	return &Processor{
		db:      p.DB,
		log:     p.Log.Named("webhook.processor"),
		cfg:     p.Cfg,
		repo:    p.Repo,
		gateway: p.Gateway,
	}
}

// Process applies one bank notification. The webhook body only identifies
// the boleto; the bank is queried for the authoritative status, so a
// replayed or forged body cannot move state on its own. Unknown references
// are dropped with a warning, not an error, so the bank does not retry them
// forever.
func (p *Processor) Process(ctx context.Context, raw []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		p.log.Warn("webhook payload is not a JSON object", zap.Error(err))
		return nil
	}

	externalID := stringKey(payload, "externalId", "external_id", "idTitulo", "id_titulo")
	nossoNumero := stringKey(payload, "nossoNumero", "nosso_numero")
	if externalID == "" && nossoNumero == "" {
		p.log.Warn("webhook payload carries no boleto reference")
		return nil
	}

	boleto, err := p.resolve(ctx, externalID, nossoNumero)
	if err == boletodomain.ErrBoletoNotFound {
		p.log.Warn("webhook for unknown boleto dropped",
			zap.String("external_id", externalID),
			zap.String("nosso_numero", nossoNumero),
		)
		return nil
	}
	if err != nil {
		return err
	}

	masked, err := json.Marshal(sanitize.Sanitize(payload))
	if err != nil {
		return err
	}

	var events []event.Event
	err = p.db.Transaction(func(tx *gorm.DB) error {
		locked, err := p.repo.LockByID(ctx, tx, boleto.ID)
		if err != nil {
			return err
		}
		locked.WebhookPayload = datatypes.JSON(masked)
		previous := locked.Status

		refreshed, err := p.gateway.RefreshStatus(ctx, tx, locked)
		if err != nil {
			return err
		}
		events, err = p.gateway.SyncOutcome(ctx, tx, refreshed, previous)
		return err
	})
	if err != nil {
		return fmt.Errorf("process webhook for boleto %d: %w", boleto.ID, err)
	}

	p.gateway.Publish(ctx, events)
	return nil
}

func (p *Processor) resolve(ctx context.Context, externalID, nossoNumero string) (*boletodomain.Boleto, error) {
	if externalID != "" {
		boleto, err := p.repo.FindByExternalRef(ctx, p.db, p.cfg.BankCode, externalID)
		if err == nil {
			return boleto, nil
		}
		if err != boletodomain.ErrBoletoNotFound {
			return nil, err
		}
	}
	if nossoNumero != "" {
		return p.repo.FindByExternalRef(ctx, p.db, p.cfg.BankCode, nossoNumero)
	}
	return nil, boletodomain.ErrBoletoNotFound
}

func stringKey(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
