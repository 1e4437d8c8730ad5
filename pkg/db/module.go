package db

import (
	"context"

	"github.com/smallbiznis/settlekit/internal/config"
	"github.com/smallbiznis/settlekit/internal/observability"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lc         fx.Lifecycle
	Cfg        config.Config
	Obs        observability.Config
	Log        *zap.Logger
	GormLogger gormlogger.Interface
}

// New opens the pool, applies limits and installs the tracing plugin.
func New(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         p.GormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if p.Obs.DBTracing {
		plugin := otelgorm.NewPlugin(
			otelgorm.WithDBName(SystemName(p.Cfg)),
			otelgorm.WithoutQueryVariables(),
		)
		if err := conn.Use(plugin); err != nil {
			return nil, err
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	pool := poolConfig(p.Cfg)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConn)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(context.Context) error {
			p.Log.Info("closing database pool")
			return sqlDB.Close()
		},
	})

	p.Log.Info("database configured",
		zap.String("type", p.Cfg.DBType),
		zap.String("host", p.Cfg.DBHost),
		zap.Bool("tracing", p.Obs.DBTracing),
	)
	return conn, nil
}
