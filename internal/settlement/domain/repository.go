package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert reports false when a settlement with the same gateway transaction id exists.
	Insert(ctx context.Context, db *gorm.DB, s *Settlement) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Settlement, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Settlement, error)
	FindByGatewayTransactionID(ctx context.Context, db *gorm.DB, gatewayTransactionID string) (*Settlement, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, reason string, at time.Time) (bool, error)
	InsertAdjustment(ctx context.Context, db *gorm.DB, adj *Adjustment) error
	ListAdjustments(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) ([]Adjustment, error)
}
