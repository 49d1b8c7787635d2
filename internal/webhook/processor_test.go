package webhook_test

import (
	"context"
	"fmt"
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
	"github.com/smallbiznis/cobranca/internal/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	processor *webhook.Processor
	gateway   *boletoservice.Gateway
	bank      *fake.Client
	bus       *event.Bus
	node      *snowflake.Node
	clock     *clock.FakeClock
}

func setup(t *testing.T) *fixture {
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

	node, err := snowflake.NewNode(8)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	holder, err := config.NewBankAgreementHolder()
	if err != nil {
		t.Fatalf("agreement holder: %v", err)
	}

	fakeClient := fake.New()
	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	bus := event.NewBus(zap.NewNop())
	cfg := config.Config{AppName: "cobranca", BankCode: "237"}

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
		Bank:        fakeClient,
		Agreement:   holder,
		Bus:         bus,
	})
	processor := webhook.NewProcessor(webhook.ProcessorParams{
		DB:      db,
		Log:     zap.NewNop(),
		Cfg:     cfg,
		Repo:    boletorepo.Provide(),
		Gateway: gateway,
	})

	return &fixture{
		db:        db,
		processor: processor,
		gateway:   gateway,
		bank:      fakeClient,
		bus:       bus,
		node:      node,
		clock:     fakeClock,
	}
}

func issueBoleto(t *testing.T, f *fixture, valorTotal int64) (*invoicedomain.Fatura, *boletodomain.Boleto) {
	t.Helper()
	ctx := context.Background()
	fatura := &invoicedomain.Fatura{
		ID:              f.node.Generate(),
		ContratoID:      f.node.Generate(),
		Competencia:     "2026-08",
		Vencimento:      time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		Status:          invoicedomain.FaturaStatusAberta,
		ValorTotal:      valorTotal,
		PagadorNome:     "Carlos Lima",
		PagadorDocument: "52998224725",
	}
	if err := invoicerepo.Provide().Insert(ctx, f.db, fatura); err != nil {
		t.Fatalf("insert fatura: %v", err)
	}
	lancamento := &financeirodomain.LancamentoFinanceiro{
		ID:       f.node.Generate(),
		FaturaID: fatura.ID,
		Status:   financeirodomain.StatusPendente,
		Valor:    valorTotal,
		Metadata: map[string]any{},
	}
	if err := financeirorepo.Provide().Insert(ctx, f.db, lancamento); err != nil {
		t.Fatalf("insert lancamento: %v", err)
	}
	boleto, err := f.gateway.Issue(ctx, fatura)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return fatura, boleto
}

func TestProcessPaidWebhookSettlesInvoice(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	fatura, boleto := issueBoleto(t, f, 98550)

	paidEvents := 0
	f.bus.Subscribe(event.BoletoPaid, func(ctx context.Context, evt event.Event) {
		paidEvents++
	})

	f.bank.Settle(boleto.NossoNumero, 985.50, time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC))

	payload := fmt.Sprintf(`{"externalId": %q, "nossoNumero": %q, "cpfPagador": "52998224725"}`, boleto.ExternalID, boleto.NossoNumero)
	if err := f.processor.Process(ctx, []byte(payload)); err != nil {
		t.Fatalf("process: %v", err)
	}

	reloaded, err := invoicerepo.Provide().Find(ctx, f.db, fatura.ID)
	if err != nil {
		t.Fatalf("reload fatura: %v", err)
	}
	if reloaded.Status != invoicedomain.FaturaStatusPaga {
		t.Fatalf("expected Paga, got %s", reloaded.Status)
	}
	if reloaded.MetodoPagamento != invoicedomain.PaymentMethodBoleto {
		t.Fatalf("expected metodo Boleto, got %q", reloaded.MetodoPagamento)
	}
	if reloaded.ValorPago != 98550 {
		t.Fatalf("expected valor_pago 98550, got %d", reloaded.ValorPago)
	}
	if paidEvents != 1 {
		t.Fatalf("expected exactly one BoletoPaid event, got %d", paidEvents)
	}

	var stored boletodomain.Boleto
	if err := f.db.First(&stored, "id = ?", boleto.ID).Error; err != nil {
		t.Fatalf("reload boleto: %v", err)
	}
	if stored.Status != boletodomain.StatusPago {
		t.Fatalf("expected pago, got %s", stored.Status)
	}
	if !strings.Contains(string(stored.WebhookPayload), "*") {
		t.Fatalf("webhook payload stored unmasked: %s", stored.WebhookPayload)
	}
	if strings.Contains(string(stored.WebhookPayload), "52998224725") {
		t.Fatal("webhook payload retains full CPF")
	}

	lancamentos, err := financeirorepo.Provide().FindByFatura(ctx, f.db, fatura.ID)
	if err != nil {
		t.Fatalf("find lancamentos: %v", err)
	}
	if len(lancamentos) != 1 || lancamentos[0].Status != financeirodomain.StatusConciliado {
		t.Fatalf("expected conciliado lancamento, got %+v", lancamentos)
	}
	if _, ok := lancamentos[0].Metadata["boleto_sync"]; !ok {
		t.Fatal("expected boleto_sync metadata trail")
	}
}

func TestProcessCancelWebhookAfterManualSettlementIsNoop(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	fatura, boleto := issueBoleto(t, f, 45000)

	// Manual settlement happened out of band before the bank processed the
	// cancellation request.
	paidAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	if err := invoicerepo.Provide().MarkPaga(ctx, f.db, fatura.ID, 45000, paidAt, "Pix"); err != nil {
		t.Fatalf("mark paga: %v", err)
	}

	canceledEvents := 0
	f.bus.Subscribe(event.BoletoCanceled, func(ctx context.Context, evt event.Event) {
		canceledEvents++
	})

	if _, err := f.bank.CancelBoleto(ctx, bankdomain.LookupKey{NossoNumero: boleto.NossoNumero}); err != nil {
		t.Fatalf("cancel at bank: %v", err)
	}

	payload := fmt.Sprintf(`{"nosso_numero": %q, "status": "BAIXADO"}`, boleto.NossoNumero)
	if err := f.processor.Process(ctx, []byte(payload)); err != nil {
		t.Fatalf("process: %v", err)
	}

	reloaded, err := invoicerepo.Provide().Find(ctx, f.db, fatura.ID)
	if err != nil {
		t.Fatalf("reload fatura: %v", err)
	}
	if reloaded.Status != invoicedomain.FaturaStatusPaga {
		t.Fatalf("settled fatura must stay Paga, got %s", reloaded.Status)
	}
	if reloaded.MetodoPagamento != "Pix" {
		t.Fatalf("manual settlement overwritten: %q", reloaded.MetodoPagamento)
	}
	if canceledEvents != 0 {
		t.Fatalf("expected no BoletoCanceled event, got %d", canceledEvents)
	}

	var stored boletodomain.Boleto
	if err := f.db.First(&stored, "id = ?", boleto.ID).Error; err != nil {
		t.Fatalf("reload boleto: %v", err)
	}
	if stored.Status != boletodomain.StatusCancelado {
		t.Fatalf("boleto should record the bank cancellation, got %s", stored.Status)
	}
}

func TestProcessUnknownReferenceIsDropped(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, boleto := issueBoleto(t, f, 10000)

	if err := f.processor.Process(ctx, []byte(`{"externalId": "ext-nope", "nossoNumero": "999999999999"}`)); err != nil {
		t.Fatalf("expected unknown reference to be dropped, got %v", err)
	}
	if err := f.processor.Process(ctx, []byte(`{"other": "field"}`)); err != nil {
		t.Fatalf("expected referenceless payload to be dropped, got %v", err)
	}
	if err := f.processor.Process(ctx, []byte(`not-json`)); err != nil {
		t.Fatalf("expected malformed payload to be dropped, got %v", err)
	}

	var stored boletodomain.Boleto
	if err := f.db.First(&stored, "id = ?", boleto.ID).Error; err != nil {
		t.Fatalf("reload boleto: %v", err)
	}
	if stored.Status != boletodomain.StatusRegistrado {
		t.Fatalf("boleto must be untouched, got %s", stored.Status)
	}
	if len(stored.WebhookPayload) != 0 {
		t.Fatal("no webhook payload should be stored")
	}
}
