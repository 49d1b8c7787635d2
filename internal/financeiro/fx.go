package financeiro

import (
	"github.com/smallbiznis/cobranca/internal/financeiro/repository"
	"github.com/smallbiznis/cobranca/internal/financeiro/service"
	"go.uber.org/fx"
)

var Module = fx.Module("financeiro",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
