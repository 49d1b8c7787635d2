// Command admin runs operator tasks against the issuance pipeline: bank
// credential checks, dummy issuance and retroactive payload sanitization.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/bank"
	bankdomain "github.com/smallbiznis/cobranca/internal/bank/domain"
	"github.com/smallbiznis/cobranca/internal/bankconfig"
	bankconfigservice "github.com/smallbiznis/cobranca/internal/bankconfig/service"
	"github.com/smallbiznis/cobranca/internal/boleto"
	boletoservice "github.com/smallbiznis/cobranca/internal/boleto/service"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/event"
	"github.com/smallbiznis/cobranca/internal/financeiro"
	"github.com/smallbiznis/cobranca/internal/invoice"
	invoicedomain "github.com/smallbiznis/cobranca/internal/invoice/domain"
	"github.com/smallbiznis/cobranca/internal/logger"
	"github.com/smallbiznis/cobranca/internal/migration"
	obsmetrics "github.com/smallbiznis/cobranca/internal/observability/metrics"
	"github.com/smallbiznis/cobranca/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const usage = `usage: admin <command> [flags]

commands:
  auth-test                         verify bank credentials with a forced token refresh
  create-dummy                      insert a test fatura and issue its boleto
  sanitize-payloads [--chunk N] [--dry-run]
                                    re-apply payload masks to stored boletos
`

type deps struct {
	fx.In

	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	Clock       clock.Clock
	Tokens      *bankconfigservice.Service
	Gateway     *boletoservice.Gateway
	InvoiceRepo invoicedomain.Repository
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	var d deps
	app := fx.New(
		config.Module,
		logger.Module,
		obsmetrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		bankconfig.Module,
		bank.Module,
		invoice.Module,
		financeiro.Module,
		event.Module,
		boleto.Module,
		fx.Populate(&d),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	ctx := context.Background()
	var err error
	switch command {
	case "auth-test":
		err = runAuthTest(ctx, d)
	case "create-dummy":
		err = runCreateDummy(ctx, d)
	case "sanitize-payloads":
		err = runSanitizePayloads(ctx, d, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func runAuthTest(ctx context.Context, d deps) error {
	cfg, err := d.Tokens.ResolveConfig(ctx, d.Cfg.BankCode)
	if err != nil {
		return fmt.Errorf("resolve bank config: %w", err)
	}
	fmt.Printf("bank config: bank_code=%s environment=%s active=%t\n", cfg.BankCode, cfg.Environment, cfg.Active)

	refreshed, err := d.Tokens.RefreshAccessToken(ctx, cfg, true)
	if err != nil {
		var apiErr *bankdomain.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("bank rejected the credentials: http %d code=%s message=%q", apiErr.HTTPStatus, apiErr.Code, apiErr.Message)
		}
		return err
	}
	fmt.Printf("token refreshed, expires at %s\n", refreshed.TokenExpiresAt.Format(time.RFC3339))
	return nil
}

func runCreateDummy(ctx context.Context, d deps) error {
	now := d.Clock.Now()
	fatura := &invoicedomain.Fatura{
		ID:              d.GenID.Generate(),
		ContratoID:      d.GenID.Generate(),
		Competencia:     now.Format("2006-01"),
		Vencimento:      now.AddDate(0, 0, 10),
		Status:          invoicedomain.FaturaStatusAberta,
		ValorTotal:      98550,
		PagadorNome:     "Maria Souza",
		PagadorDocument: "12345678909",
		PagadorEmail:    "maria.souza@example.com",
		PagadorEndereco: map[string]any{
			"logradouro": "Rua das Laranjeiras, 100",
			"cep":        "01310-100",
			"cidade":     "Sao Paulo",
			"uf":         "SP",
		},
	}
	if err := d.InvoiceRepo.Insert(ctx, d.DB, fatura); err != nil {
		return fmt.Errorf("insert fatura: %w", err)
	}
	fmt.Printf("fatura created: id=%s valor=R$%.2f vencimento=%s\n", fatura.ID, float64(fatura.ValorTotal)/100, fatura.Vencimento.Format("2006-01-02"))

	issued, err := d.Gateway.Issue(ctx, fatura)
	if err != nil {
		var apiErr *bankdomain.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("bank rejected issuance: http %d code=%s message=%q", apiErr.HTTPStatus, apiErr.Code, apiErr.Message)
		}
		return err
	}
	fmt.Printf("boleto issued: status=%s nosso_numero=%s linha_digitavel=%s pdf=%s\n",
		issued.Status, issued.NossoNumero, issued.LinhaDigitavel, issued.PDFURL)
	return nil
}

func runSanitizePayloads(ctx context.Context, d deps, args []string) error {
	flags := flag.NewFlagSet("sanitize-payloads", flag.ExitOnError)
	chunk := flags.Int("chunk", 100, "rows per chunk")
	dryRun := flags.Bool("dry-run", false, "report without writing")
	if err := flags.Parse(args); err != nil {
		return err
	}

	changed, err := d.Gateway.SanitizeHistorical(ctx, *chunk, *dryRun)
	if err != nil {
		return err
	}
	if *dryRun {
		fmt.Printf("%d boleto(s) would change\n", changed)
	} else {
		fmt.Printf("%d boleto(s) sanitized\n", changed)
	}
	return nil
}
