package migration

import (
	"strings"

	accountdomain "github.com/smallbiznis/settlekit/internal/account/domain"
	auditdomain "github.com/smallbiznis/settlekit/internal/audit/domain"
	"github.com/smallbiznis/settlekit/internal/config"
	invoicedomain "github.com/smallbiznis/settlekit/internal/invoice/domain"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	revenuedomain "github.com/smallbiznis/settlekit/internal/revenue/domain"
	sellertierdomain "github.com/smallbiznis/settlekit/internal/sellertier/domain"
	settlementdomain "github.com/smallbiznis/settlekit/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date. Postgres runs the versioned SQL
// migrations; the local dialects fall back to gorm AutoMigrate.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case "postgres", "postgresql":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("database migrations applied", zap.String("dialect", "postgres"))
		return nil
	default:
		if err := AutoMigrate(conn); err != nil {
			return err
		}
		log.Info("database schema auto-migrated", zap.String("dialect", cfg.DBType))
		return nil
	}
}

// AutoMigrate creates every table from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}

// Models lists the persisted models in dependency order.
func Models() []any {
	return []any{
		&accountdomain.Account{},
		&auditdomain.AuditLog{},
		&rateconfigdomain.Version{},
		&settlementdomain.Settlement{},
		&settlementdomain.Adjustment{},
		&sellertierdomain.SellerTierState{},
		&sellertierdomain.TierChange{},
		&invoicedomain.Sequence{},
		&invoicedomain.Invoice{},
		&invoicedomain.Delivery{},
		&revenuedomain.Subscription{},
	}
}
