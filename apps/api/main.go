package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/bank"
	"github.com/smallbiznis/cobranca/internal/bankconfig"
	"github.com/smallbiznis/cobranca/internal/boleto"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/event"
	"github.com/smallbiznis/cobranca/internal/financeiro"
	"github.com/smallbiznis/cobranca/internal/invoice"
	"github.com/smallbiznis/cobranca/internal/logger"
	"github.com/smallbiznis/cobranca/internal/migration"
	obsmetrics "github.com/smallbiznis/cobranca/internal/observability/metrics"
	"github.com/smallbiznis/cobranca/internal/server"
	"github.com/smallbiznis/cobranca/internal/webhook"
	"github.com/smallbiznis/cobranca/pkg/db"
	"go.uber.org/fx"
)

func main() {
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
		webhook.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
