package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlekit/internal/clock"
	"github.com/smallbiznis/settlekit/internal/config"
	"github.com/smallbiznis/settlekit/internal/observability"
	"github.com/smallbiznis/settlekit/internal/scheduler"
	"github.com/smallbiznis/settlekit/internal/server"
	"github.com/smallbiznis/settlekit/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services only. No HTTP listener.
		server.Domains,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
