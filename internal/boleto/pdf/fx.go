package pdf

import "go.uber.org/fx"

var Module = fx.Module("boleto.pdf",
	fx.Provide(New),
)
