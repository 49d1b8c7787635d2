package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	bankdomain "github.com/smallbiznis/cobranca/internal/bank/domain"
	"github.com/smallbiznis/cobranca/internal/boleto/domain"
	"github.com/smallbiznis/cobranca/internal/boleto/pdf"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/event"
	financeiroservice "github.com/smallbiznis/cobranca/internal/financeiro/service"
	invoicedomain "github.com/smallbiznis/cobranca/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/cobranca/internal/observability/metrics"
	"github.com/smallbiznis/cobranca/internal/sanitize"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Clock       clock.Clock
	GenID       *snowflake.Node
	Repo        domain.Repository
	InvoiceRepo invoicedomain.Repository
	Financeiro  *financeiroservice.Service
	Bank        bankdomain.Client
	Agreement   *config.BankAgreementHolder
	Bus         *event.Bus
	PDF         pdf.Provider        `optional:"true"`
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

// Gateway orchestrates boleto issuance and status refresh against the bank.
type Gateway struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         config.Config
	clock       clock.Clock
	genID       *snowflake.Node
	repo        domain.Repository
	invoiceRepo invoicedomain.Repository
	financeiro  *financeiroservice.Service
	bank        bankdomain.Client
	agreement   *config.BankAgreementHolder
	bus         *event.Bus
	pdf         pdf.Provider
	metrics     *obsmetrics.Metrics
}

func NewGateway(p Params) *Gateway {
	return &Gateway{
		db:          p.DB,
		log:         p.Log.Named("boleto.gateway"),
		cfg:         p.Cfg,
		clock:       p.Clock,
		genID:       p.GenID,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		financeiro:  p.Financeiro,
		bank:        p.Bank,
		agreement:   p.Agreement,
		bus:         p.Bus,
		pdf:         p.PDF,
		metrics:     p.Metrics,
	}
}

// Issue registers a boleto for the fatura at the bank. It is idempotent: an
// existing boleto in registrado or pago is returned as-is with no bank call
// and no event. A pending row is reused; a cancelled one is replaced by a
// fresh row.
func (g *Gateway) Issue(ctx context.Context, fatura *invoicedomain.Fatura) (*domain.Boleto, error) {
	if fatura == nil {
		return nil, invoicedomain.ErrInvalidFatura
	}

	existing, err := g.repo.FindByFatura(ctx, g.db, fatura.ID)
	if err != nil && err != domain.ErrBoletoNotFound {
		return nil, err
	}
	if existing != nil && (existing.Status == domain.StatusRegistrado || existing.Status == domain.StatusPago) {
		g.log.Info("boleto already registered, skipping bank call",
			zap.Int64("fatura_id", int64(fatura.ID)),
			zap.String("nosso_numero", existing.NossoNumero),
		)
		return existing, nil
	}

	req := g.buildIssueRequest(fatura)
	resp, err := g.bank.IssueBoleto(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("issue boleto for fatura %d: %w", fatura.ID, err)
	}

	now := g.clock.Now()
	boleto := existing
	if boleto == nil {
		boleto = &domain.Boleto{
			ID:       g.genID.Generate(),
			FaturaID: fatura.ID,
			BankCode: g.cfg.BankCode,
		}
	}
	boleto.ExternalID = resp.ExternalID
	boleto.NossoNumero = resp.NossoNumero
	boleto.NumeroDocumento = resp.NumeroDocumento
	boleto.LinhaDigitavel = resp.LinhaDigitavel
	boleto.CodigoBarras = resp.CodigoBarras
	boleto.Valor = fatura.ValorTotal
	boleto.Vencimento = fatura.Vencimento
	boleto.RegistradoEm = &now
	boleto.LastSyncedAt = &now

	if mapped, ok := bankdomain.MapStatus(resp.Status); ok {
		boleto.Status = mapped
	} else {
		boleto.Status = domain.StatusRegistrado
	}

	if boleto.RequestPayload, err = sanitizedJSON(req); err != nil {
		return nil, err
	}
	if boleto.ResponsePayload, err = sanitizedJSON(resp); err != nil {
		return nil, err
	}

	pdfURL, err := g.resolvePDF(ctx, fatura, resp)
	if err != nil {
		g.log.Warn("boleto pdf resolution failed",
			zap.String("nosso_numero", resp.NossoNumero),
			zap.Error(err),
		)
	}
	boleto.PDFURL = pdfURL

	err = g.db.Transaction(func(tx *gorm.DB) error {
		if existing == nil {
			if err := g.repo.Insert(ctx, tx, boleto); err != nil {
				return err
			}
		} else {
			if err := g.repo.Update(ctx, tx, boleto); err != nil {
				return err
			}
		}
		return g.invoiceRepo.SetBoletoRef(ctx, tx, fatura.ID, boleto.NossoNumero, boleto.PDFURL)
	})
	if err != nil {
		return nil, err
	}
	fatura.NossoNumero = boleto.NossoNumero
	fatura.BoletoURL = boleto.PDFURL

	g.metrics.BoletoIssued()
	g.bus.Publish(ctx, event.Event{Name: event.BoletoRegistered, Fatura: fatura, Boleto: boleto})
	return boleto, nil
}

// RefreshStatus queries the bank and applies the authoritative status to the
// boleto. Safe on a terminal boleto: a paid boleto never regresses and only
// the sync timestamp moves. Runs inside the caller's transaction, which must
// hold the row lock.
func (g *Gateway) RefreshStatus(ctx context.Context, tx *gorm.DB, boleto *domain.Boleto) (*domain.Boleto, error) {
	resp, err := g.bank.GetBoleto(ctx, bankdomain.LookupKey{
		ExternalID:  boleto.ExternalID,
		NossoNumero: boleto.NossoNumero,
	})
	if err != nil {
		return nil, fmt.Errorf("refresh boleto %d: %w", boleto.ID, err)
	}

	now := g.clock.Now()
	boleto.LastSyncedAt = &now
	if boleto.ResponsePayload, err = sanitizedJSON(resp); err != nil {
		return nil, err
	}

	if mapped, ok := bankdomain.MapStatus(resp.Status); ok {
		if boleto.CanTransitionTo(mapped) {
			boleto.Status = mapped
			switch mapped {
			case domain.StatusPago:
				boleto.ValorPago = centavos(resp.ValorPago)
				if boleto.ValorPago == 0 {
					boleto.ValorPago = boleto.Valor
				}
				boleto.LiquidadoEm = parseBankDate(resp.DataLiquidacao, now)
			case domain.StatusRegistrado:
				if boleto.RegistradoEm == nil {
					boleto.RegistradoEm = &now
				}
			}
		}
	} else if resp.Status != "" {
		g.log.Warn("unknown bank status, keeping current",
			zap.Int64("boleto_id", int64(boleto.ID)),
			zap.String("raw_status", resp.Status),
		)
	}

	if err := g.repo.Update(ctx, tx, boleto); err != nil {
		return nil, err
	}
	return boleto, nil
}

// SyncOutcome propagates a terminal boleto to the fatura and its financial
// transactions. Returns the events to publish after the transaction commits.
func (g *Gateway) SyncOutcome(ctx context.Context, tx *gorm.DB, boleto *domain.Boleto, previous domain.Status) ([]event.Event, error) {
	if boleto.Status == previous || !boleto.IsTerminal() {
		return nil, nil
	}

	fatura, err := g.invoiceRepo.Find(ctx, tx, boleto.FaturaID)
	if err != nil {
		return nil, err
	}

	switch boleto.Status {
	case domain.StatusPago:
		if fatura.IsPaga() {
			g.log.Warn("boleto paid but fatura already settled",
				zap.Int64("fatura_id", int64(fatura.ID)),
				zap.Int64("boleto_id", int64(boleto.ID)),
			)
			return nil, nil
		}
		paidAt := g.clock.Now()
		if boleto.LiquidadoEm != nil {
			paidAt = *boleto.LiquidadoEm
		}
		if err := g.invoiceRepo.MarkPaga(ctx, tx, fatura.ID, boleto.ValorPago, paidAt, invoicedomain.PaymentMethodBoleto); err != nil {
			return nil, err
		}
		fatura.Status = invoicedomain.FaturaStatusPaga
		fatura.ValorPago = boleto.ValorPago
		fatura.PagoEm = &paidAt
		fatura.MetodoPagamento = invoicedomain.PaymentMethodBoleto
		if err := g.financeiro.SyncFromBoleto(ctx, tx, fatura.ID, boleto); err != nil {
			return nil, err
		}
		return []event.Event{{Name: event.BoletoPaid, Fatura: fatura, Boleto: boleto}}, nil

	case domain.StatusCancelado:
		if fatura.IsPaga() {
			g.log.Info("boleto cancelled after fatura settlement, invoice untouched",
				zap.Int64("fatura_id", int64(fatura.ID)),
				zap.Int64("boleto_id", int64(boleto.ID)),
			)
			return nil, nil
		}
		if err := g.invoiceRepo.MarkCancelada(ctx, tx, fatura.ID); err != nil {
			return nil, err
		}
		fatura.Status = invoicedomain.FaturaStatusCancelada
		if err := g.financeiro.SyncFromBoleto(ctx, tx, fatura.ID, boleto); err != nil {
			return nil, err
		}
		return []event.Event{{Name: event.BoletoCanceled, Fatura: fatura, Boleto: boleto}}, nil
	}
	return nil, nil
}

// Publish forwards events collected during a transaction once it committed.
func (g *Gateway) Publish(ctx context.Context, events []event.Event) {
	for _, evt := range events {
		g.bus.Publish(ctx, evt)
	}
}

// SanitizeHistorical re-applies the payload masks to every stored boleto in
// id-ordered chunks. Returns how many rows changed, or would change when
// dryRun is set.
func (g *Gateway) SanitizeHistorical(ctx context.Context, chunkSize int, dryRun bool) (int, error) {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	changed := 0
	var lastID snowflake.ID
	for {
		var chunk []domain.Boleto
		err := g.db.WithContext(ctx).Raw(
			`SELECT *
			 FROM fatura_boletos
			 WHERE id > ?
			 ORDER BY id ASC
			 LIMIT ?`,
			lastID,
			chunkSize,
		).Scan(&chunk).Error
		if err != nil {
			return changed, err
		}
		if len(chunk) == 0 {
			return changed, nil
		}
		for i := range chunk {
			boleto := &chunk[i]
			lastID = boleto.ID

			request, requestChanged, err := resanitize(boleto.RequestPayload)
			if err != nil {
				return changed, fmt.Errorf("boleto %d request payload: %w", boleto.ID, err)
			}
			response, responseChanged, err := resanitize(boleto.ResponsePayload)
			if err != nil {
				return changed, fmt.Errorf("boleto %d response payload: %w", boleto.ID, err)
			}
			webhook, webhookChanged, err := resanitize(boleto.WebhookPayload)
			if err != nil {
				return changed, fmt.Errorf("boleto %d webhook payload: %w", boleto.ID, err)
			}
			if !requestChanged && !responseChanged && !webhookChanged {
				continue
			}
			changed++
			if dryRun {
				continue
			}
			err = g.db.WithContext(ctx).Exec(
				`UPDATE fatura_boletos
				 SET request_payload = ?, response_payload = ?, webhook_payload = ?, updated_at = ?
				 WHERE id = ?`,
				request,
				response,
				webhook,
				g.clock.Now(),
				boleto.ID,
			).Error
			if err != nil {
				return changed, err
			}
		}
	}
}

func (g *Gateway) buildIssueRequest(fatura *invoicedomain.Fatura) *bankdomain.IssueRequest {
	agreement := g.agreement.Get()
	req := &bankdomain.IssueRequest{
		ProductID:       int64(agreement.ProductID),
		NegotiationID:   agreement.NegotiationID,
		AgreementNo:     agreement.AgreementNo,
		Carteira:        int64(agreement.Carteira),
		Especie:         agreement.Especie,
		NumeroDocumento: fmt.Sprintf("FAT-%s-%s", fatura.Competencia, fatura.ID.String()),
		Valor:           float64(fatura.ValorTotal) / 100,
		Vencimento:      fatura.Vencimento.Format("2006-01-02"),
		PagadorNome:     fatura.PagadorNome,
		PagadorDocument: fatura.PagadorDocument,
	}
	if endereco := fatura.PagadorEndereco; endereco != nil {
		req.PagadorEndereco = stringField(endereco, "logradouro")
		req.PagadorCEP = stringField(endereco, "cep")
		req.PagadorCidade = stringField(endereco, "cidade")
		req.PagadorUF = stringField(endereco, "uf")
	}
	return req
}

// resolvePDF prefers the bank-provided URL, then downloads the document
// into the configured directory. When the bank has no document yet a slip
// is rendered locally from the registration data.
func (g *Gateway) resolvePDF(ctx context.Context, fatura *invoicedomain.Fatura, resp *bankdomain.BoletoResponse) (string, error) {
	if resp.URLPDF != "" {
		return resp.URLPDF, nil
	}
	if g.cfg.BankPDFDir == "" {
		return "", nil
	}
	data, err := g.bank.FetchPDF(ctx, bankdomain.LookupKey{
		ExternalID:  resp.ExternalID,
		NossoNumero: resp.NossoNumero,
	})
	if (err != nil || len(data) == 0) && g.pdf != nil {
		data, err = g.pdf.GenerateSlip(ctx, pdf.SlipData{
			BancoNome:        "Bradesco",
			BankCode:         g.cfg.BankCode,
			Beneficiario:     g.cfg.AppName,
			PagadorNome:      sanitize.MaskName(fatura.PagadorNome),
			PagadorDocumento: sanitize.MaskDocument(fatura.PagadorDocument),
			NossoNumero:      resp.NossoNumero,
			NumeroDocumento:  resp.NumeroDocumento,
			Valor:            formatReais(fatura.ValorTotal),
			Vencimento:       fatura.Vencimento.Format("2006-01-02"),
			LinhaDigitavel:   resp.LinhaDigitavel,
			CodigoBarras:     resp.CodigoBarras,
		})
	}
	if err != nil {
		return "", err
	}
	name := resp.NossoNumero + ".pdf"
	if err := os.MkdirAll(g.cfg.BankPDFDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(g.cfg.BankPDFDir, name), data, 0o644); err != nil {
		return "", err
	}
	return strings.TrimRight(g.cfg.BankPDFBaseURL, "/") + "/" + name, nil
}

func sanitizedJSON(payload any) (datatypes.JSON, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	masked, err := json.Marshal(sanitize.Sanitize(parsed))
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(masked), nil
}

func resanitize(payload datatypes.JSON) (datatypes.JSON, bool, error) {
	if len(payload) == 0 {
		return payload, false, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return payload, false, err
	}
	masked, err := json.Marshal(sanitize.Sanitize(parsed))
	if err != nil {
		return payload, false, err
	}
	current, err := json.Marshal(parsed)
	if err != nil {
		return payload, false, err
	}
	return datatypes.JSON(masked), !bytes.Equal(masked, current), nil
}

func centavos(value float64) int64 {
	return int64(math.Round(value * 100))
}

func formatReais(value int64) string {
	formatted := fmt.Sprintf("R$ %.2f", float64(value)/100)
	return strings.Replace(formatted, ".", ",", 1)
}

func parseBankDate(value string, fallback time.Time) *time.Time {
	if value == "" {
		return &fallback
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed
		}
	}
	return &fallback
}

func stringField(m map[string]any, key string) string {
	value, _ := m[key].(string)
	return value
}
