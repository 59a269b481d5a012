package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societybill/internal/clock"
	"github.com/smallbiznis/societybill/internal/config"
	"github.com/smallbiznis/societybill/internal/migration"
	"github.com/smallbiznis/societybill/internal/observability"
	"github.com/smallbiznis/societybill/internal/scheduler"
	"github.com/smallbiznis/societybill/internal/server"
	"github.com/smallbiznis/societybill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API plus the monthly generation job in one process.
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
