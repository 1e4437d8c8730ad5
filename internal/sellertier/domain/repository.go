package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindState(ctx context.Context, db *gorm.DB, sellerID snowflake.ID) (*SellerTierState, error)
	// FindStateForUpdate row-locks the state where the dialect supports it.
	FindStateForUpdate(ctx context.Context, db *gorm.DB, sellerID snowflake.ID) (*SellerTierState, error)
	// InsertStateIfAbsent reports whether this call created the row.
	InsertStateIfAbsent(ctx context.Context, db *gorm.DB, state *SellerTierState) (bool, error)
	UpdateState(ctx context.Context, db *gorm.DB, state *SellerTierState) error
	InsertChange(ctx context.Context, db *gorm.DB, change *TierChange) error
	ListChanges(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, limit int) ([]TierChange, error)
	// RollingSales sums completed resource sales settled in currency for sellerID
	// with occurred_at in [from, to). Other currencies are never added in.
	RollingSales(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, currency string, from, to time.Time) (SalesSummary, error)
	LifetimeSales(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, currency string) (SalesSummary, error)
}
