package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societybill/internal/clock"
	"github.com/smallbiznis/societybill/internal/config"
	"github.com/smallbiznis/societybill/internal/migration"
	"github.com/smallbiznis/societybill/internal/observability"
	"github.com/smallbiznis/societybill/internal/server"
	"github.com/smallbiznis/societybill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// No scheduler; run apps/scheduler alongside.
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
