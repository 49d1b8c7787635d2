package bankconfig

import (
	"github.com/smallbiznis/cobranca/internal/bankconfig/repository"
	"github.com/smallbiznis/cobranca/internal/bankconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bankconfig",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
