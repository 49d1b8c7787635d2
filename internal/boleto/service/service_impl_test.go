package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	bankdomain "github.com/smallbiznis/cobranca/internal/bank/domain"
	"github.com/smallbiznis/cobranca/internal/bank/fake"
	bankconfigdomain "github.com/smallbiznis/cobranca/internal/bankconfig/domain"
	boletodomain "github.com/smallbiznis/cobranca/internal/boleto/domain"
	boletorepo "github.com/smallbiznis/cobranca/internal/boleto/repository"
	boletoservice "github.com/smallbiznis/cobranca/internal/boleto/service"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/event"
	financeirodomain "github.com/smallbiznis/cobranca/internal/financeiro/domain"
	financeirorepo "github.com/smallbiznis/cobranca/internal/financeiro/repository"
	financeiroservice "github.com/smallbiznis/cobranca/internal/financeiro/service"
	invoicedomain "github.com/smallbiznis/cobranca/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/cobranca/internal/invoice/repository"
	obsmetrics "github.com/smallbiznis/cobranca/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// countingClient wraps a bank client and counts issuance calls.
type countingClient struct {
	bankdomain.Client
	issueCalls int
}

func (c *countingClient) IssueBoleto(ctx context.Context, req *bankdomain.IssueRequest) (*bankdomain.BoletoResponse, error) {
	c.issueCalls++
	return c.Client.IssueBoleto(ctx, req)
}

type fixture struct {
	db      *gorm.DB
	gateway *boletoservice.Gateway
	bank    *fake.Client
	counter *countingClient
	bus     *event.Bus
	clock   *clock.FakeClock
	node    *snowflake.Node
	cfg     config.Config
}

func setupGateway(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&invoicedomain.Fatura{},
		&boletodomain.Boleto{},
		&bankconfigdomain.BankAPIConfig{},
		&financeirodomain.LancamentoFinanceiro{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	holder, err := config.NewBankAgreementHolder()
	if err != nil {
		t.Fatalf("agreement holder: %v", err)
	}

	fakeClient := fake.New()
	counter := &countingClient{Client: fakeClient}
	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	bus := event.NewBus(zap.NewNop())
	cfg := config.Config{
		AppName:        "cobranca",
		BankCode:       "237",
		BankPDFDir:     t.TempDir(),
		BankPDFBaseURL: "/storage/boletos",
	}

	financeiroSvc := financeiroservice.NewService(financeiroservice.Params{
		Log:   zap.NewNop(),
		Clock: fakeClock,
		Repo:  financeirorepo.Provide(),
	})

	gateway := boletoservice.NewGateway(boletoservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		Cfg:         cfg,
		Clock:       fakeClock,
		GenID:       node,
		Repo:        boletorepo.Provide(),
		InvoiceRepo: invoicerepo.Provide(),
		Financeiro:  financeiroSvc,
		Bank:        counter,
		Agreement:   holder,
		Bus:         bus,
		Metrics:     obsmetrics.FromConfig(cfg),
	})

	return &fixture{
		db:      db,
		gateway: gateway,
		bank:    fakeClient,
		counter: counter,
		bus:     bus,
		clock:   fakeClock,
		node:    node,
		cfg:     cfg,
	}
}

func seedFatura(t *testing.T, f *fixture, valorTotal int64) *invoicedomain.Fatura {
	t.Helper()
	fatura := &invoicedomain.Fatura{
		ID:              f.node.Generate(),
		ContratoID:      f.node.Generate(),
		Competencia:     "2026-08",
		Vencimento:      time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		Status:          invoicedomain.FaturaStatusAberta,
		ValorTotal:      valorTotal,
		PagadorNome:     "Maria Souza",
		PagadorDocument: "12345678909",
		PagadorEmail:    "maria.souza@example.com",
		PagadorEndereco: map[string]any{"logradouro": "Rua A, 10", "cidade": "Sao Paulo", "uf": "SP"},
	}
	if err := invoicerepo.Provide().Insert(context.Background(), f.db, fatura); err != nil {
		t.Fatalf("insert fatura: %v", err)
	}
	return fatura
}

func TestIssueRegistersBoletoWithMaskedPayload(t *testing.T) {
	ctx := context.Background()
	f := setupGateway(t)
	fatura := seedFatura(t, f, 98550)

	boleto, err := f.gateway.Issue(ctx, fatura)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if boleto.Status != boletodomain.StatusRegistrado {
		t.Fatalf("expected registrado, got %s", boleto.Status)
	}
	if boleto.NossoNumero == "" {
		t.Fatal("expected nosso_numero to be set")
	}
	if boleto.PDFURL == "" {
		t.Fatal("expected pdf_url to be set")
	}
	if boleto.Valor != 98550 {
		t.Fatalf("expected valor 98550, got %d", boleto.Valor)
	}

	var request map[string]any
	if err := json.Unmarshal(boleto.RequestPayload, &request); err != nil {
		t.Fatalf("unmarshal request payload: %v", err)
	}
	doc, _ := request["documentoPagador"].(string)
	if !strings.Contains(doc, "*") || strings.Contains(doc, "45678") {
		t.Fatalf("expected masked CPF, got %q", doc)
	}
	nome, _ := request["nomePagador"].(string)
	if !strings.Contains(nome, "*") {
		t.Fatalf("expected masked payer name, got %q", nome)
	}

	reloaded, err := invoicerepo.Provide().Find(ctx, f.db, fatura.ID)
	if err != nil {
		t.Fatalf("reload fatura: %v", err)
	}
	if reloaded.NossoNumero != boleto.NossoNumero {
		t.Fatalf("fatura nosso_numero not linked: %q", reloaded.NossoNumero)
	}
	if reloaded.BoletoURL == "" {
		t.Fatal("fatura boleto_url not linked")
	}
}

func TestIssueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := setupGateway(t)
	fatura := seedFatura(t, f, 12000)

	registered := 0
	f.bus.Subscribe(event.BoletoRegistered, func(ctx context.Context, evt event.Event) {
		registered++
	})

	first, err := f.gateway.Issue(ctx, fatura)
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	second, err := f.gateway.Issue(ctx, fatura)
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same boleto, got %d and %d", first.ID, second.ID)
	}
	if f.counter.issueCalls != 1 {
		t.Fatalf("expected one bank call, got %d", f.counter.issueCalls)
	}
	if registered != 1 {
		t.Fatalf("expected one registered event, got %d", registered)
	}

	var count int64
	if err := f.db.Model(&boletodomain.Boleto{}).Count(&count).Error; err != nil {
		t.Fatalf("count boletos: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
}

func TestRefreshStatusAppliesSettlement(t *testing.T) {
	ctx := context.Background()
	f := setupGateway(t)
	fatura := seedFatura(t, f, 98550)

	boleto, err := f.gateway.Issue(ctx, fatura)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !f.bank.Settle(boleto.NossoNumero, 985.50, time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("settle failed")
	}

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.gateway.RefreshStatus(ctx, tx, boleto)
		return err
	})
	if err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}

	if boleto.Status != boletodomain.StatusPago {
		t.Fatalf("expected pago, got %s", boleto.Status)
	}
	if boleto.ValorPago != 98550 {
		t.Fatalf("expected valor_pago 98550, got %d", boleto.ValorPago)
	}
	if boleto.LiquidadoEm == nil || boleto.LiquidadoEm.Format("2006-01-02") != "2026-09-05" {
		t.Fatalf("unexpected liquidado_em: %v", boleto.LiquidadoEm)
	}
}

func TestRefreshStatusNeverRevertsPaid(t *testing.T) {
	ctx := context.Background()
	f := setupGateway(t)
	fatura := seedFatura(t, f, 5000)

	boleto, err := f.gateway.Issue(ctx, fatura)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	f.bank.Settle(boleto.NossoNumero, 50, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.gateway.RefreshStatus(ctx, tx, boleto)
		return err
	})
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	paidAt := *boleto.LiquidadoEm
	paidAmount := boleto.ValorPago
	firstSync := *boleto.LastSyncedAt

	f.clock.Advance(time.Hour)
	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.gateway.RefreshStatus(ctx, tx, boleto)
		return err
	})
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	if boleto.Status != boletodomain.StatusPago {
		t.Fatalf("paid boleto regressed to %s", boleto.Status)
	}
	if boleto.ValorPago != paidAmount || !boleto.LiquidadoEm.Equal(paidAt) {
		t.Fatal("settlement fields changed on re-refresh")
	}
	if !boleto.LastSyncedAt.After(firstSync) {
		t.Fatal("expected last_synced_at to move forward")
	}
}

func TestSanitizeHistorical(t *testing.T) {
	ctx := context.Background()
	f := setupGateway(t)
	fatura := seedFatura(t, f, 30000)

	raw := []byte(`{"nomePagador":"Joao Pereira","documentoPagador":"98765432100","linhaDigitavel":"23790123456789012345678901234567890123456789"}`)
	dirty := &boletodomain.Boleto{
		ID:              f.node.Generate(),
		FaturaID:        fatura.ID,
		BankCode:        "237",
		NossoNumero:     "000000000042",
		Valor:           30000,
		Vencimento:      fatura.Vencimento,
		Status:          boletodomain.StatusRegistrado,
		RequestPayload:  raw,
		ResponsePayload: []byte(`{"status":"REGISTRADO"}`),
	}
	if err := boletorepo.Provide().Insert(ctx, f.db, dirty); err != nil {
		t.Fatalf("insert boleto: %v", err)
	}

	changed, err := f.gateway.SanitizeHistorical(ctx, 10, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 row flagged, got %d", changed)
	}

	var before boletodomain.Boleto
	if err := f.db.First(&before, "id = ?", dirty.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if strings.Contains(string(before.RequestPayload), "*") {
		t.Fatal("dry run must not write")
	}

	changed, err = f.gateway.SanitizeHistorical(ctx, 10, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 row changed, got %d", changed)
	}

	var after boletodomain.Boleto
	if err := f.db.First(&after, "id = ?", dirty.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(after.RequestPayload, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc := payload["documentoPagador"].(string); !strings.Contains(doc, "*") {
		t.Fatalf("document not masked: %q", doc)
	}
	if nome := payload["nomePagador"].(string); !strings.Contains(nome, "*") {
		t.Fatalf("name not masked: %q", nome)
	}

	changed, err = f.gateway.SanitizeHistorical(ctx, 10, true)
	if err != nil {
		t.Fatalf("second dry run: %v", err)
	}
	if changed != 0 {
		t.Fatalf("sanitization should be stable, got %d changed", changed)
	}
}
