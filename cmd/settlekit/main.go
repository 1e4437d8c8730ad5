package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlekit/internal/clock"
	"github.com/smallbiznis/settlekit/internal/config"
	"github.com/smallbiznis/settlekit/internal/migration"
	"github.com/smallbiznis/settlekit/internal/observability"
	"github.com/smallbiznis/settlekit/internal/scheduler"
	"github.com/smallbiznis/settlekit/internal/server"
	"github.com/smallbiznis/settlekit/pkg/db"
	"go.uber.org/fx"
)

// settlekit runs the HTTP adapter and the scheduler in one process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
