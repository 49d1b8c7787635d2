package bank

import (
	"github.com/smallbiznis/cobranca/internal/bank/client"
	"github.com/smallbiznis/cobranca/internal/bank/domain"
	"github.com/smallbiznis/cobranca/internal/bank/fake"
	bankconfigservice "github.com/smallbiznis/cobranca/internal/bankconfig/service"
	"github.com/smallbiznis/cobranca/internal/config"
	obsmetrics "github.com/smallbiznis/cobranca/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("bank",
	fx.Provide(NewClient),
)

// NewClient wires the fake in sandbox mode and the live mTLS client
// otherwise.
func NewClient(log *zap.Logger, cfg config.Config, tokens *bankconfigservice.Service, metrics *obsmetrics.Metrics) domain.Client {
	if cfg.BankSandboxFake {
		log.Named("bank").Info("using fake bank client")
		return fake.New()
	}
	return client.New(log, cfg, tokens, metrics)
}
