package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societybill/internal/authorization"
	"github.com/smallbiznis/societybill/internal/bill"
	"github.com/smallbiznis/societybill/internal/clock"
	"github.com/smallbiznis/societybill/internal/config"
	"github.com/smallbiznis/societybill/internal/maintenancerule"
	"github.com/smallbiznis/societybill/internal/observability"
	"github.com/smallbiznis/societybill/internal/scheduler"
	"github.com/smallbiznis/societybill/internal/unit"
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

		// Domain services required by the generation job
		authorization.Module,
		unit.Module,
		maintenancerule.Module,
		bill.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

// Replicas must use distinct SNOWFLAKE_NODE values.
func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
