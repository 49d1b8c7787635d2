package boleto

import (
	"github.com/smallbiznis/cobranca/internal/boleto/pdf"
	"github.com/smallbiznis/cobranca/internal/boleto/repository"
	"github.com/smallbiznis/cobranca/internal/boleto/service"
	"go.uber.org/fx"
)

var Module = fx.Module("boleto",
	pdf.Module,
	fx.Provide(repository.Provide),
	fx.Provide(service.NewGateway),
)
