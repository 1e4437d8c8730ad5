package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlekit/internal/sellertier/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sourceResourceSale = "resource_sale"
	statusCompleted    = "completed"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindState(ctx context.Context, db *gorm.DB, sellerID snowflake.ID) (*domain.SellerTierState, error) {
	return r.findState(db.WithContext(ctx), sellerID)
}

func (r *repo) FindStateForUpdate(ctx context.Context, db *gorm.DB, sellerID snowflake.ID) (*domain.SellerTierState, error) {
	return r.findState(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), sellerID)
}

func (r *repo) findState(db *gorm.DB, sellerID snowflake.ID) (*domain.SellerTierState, error) {
	var state domain.SellerTierState
	err := db.Where("seller_id = ?", sellerID).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *repo) InsertStateIfAbsent(ctx context.Context, db *gorm.DB, state *domain.SellerTierState) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO seller_tier_states (
			seller_id, current_tier, current_royalty_rate,
			rolling_net_sales_12mo, rolling_sale_count_12mo,
			lifetime_net_sales, lifetime_earnings,
			rate_config_version, last_recomputed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (seller_id) DO NOTHING`,
		state.SellerID,
		state.CurrentTier,
		state.CurrentRoyaltyRate,
		state.RollingNetSales12mo,
		state.RollingSaleCount12mo,
		state.LifetimeNetSales,
		state.LifetimeEarnings,
		state.RateConfigVersion,
		state.LastRecomputedAt,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateState(ctx context.Context, db *gorm.DB, state *domain.SellerTierState) error {
	return db.WithContext(ctx).Exec(
		`UPDATE seller_tier_states
		 SET current_tier = ?,
		     current_royalty_rate = ?,
		     rolling_net_sales_12mo = ?,
		     rolling_sale_count_12mo = ?,
		     lifetime_net_sales = ?,
		     lifetime_earnings = ?,
		     rate_config_version = ?,
		     last_recomputed_at = ?,
		     updated_at = ?
		 WHERE seller_id = ?`,
		state.CurrentTier,
		state.CurrentRoyaltyRate,
		state.RollingNetSales12mo,
		state.RollingSaleCount12mo,
		state.LifetimeNetSales,
		state.LifetimeEarnings,
		state.RateConfigVersion,
		state.LastRecomputedAt,
		state.UpdatedAt,
		state.SellerID,
	).Error
}

func (r *repo) InsertChange(ctx context.Context, db *gorm.DB, change *domain.TierChange) error {
	if change == nil {
		return nil
	}
	return db.WithContext(ctx).Create(change).Error
}

func (r *repo) ListChanges(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, limit int) ([]domain.TierChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var changes []domain.TierChange
	err := db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("changed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&changes).Error
	return changes, err
}

func (r *repo) RollingSales(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, currency string, from, to time.Time) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(gross_amount - vat_amount), 0) AS net_sales,
		        COUNT(1) AS sale_count,
		        COALESCE(SUM(seller_earnings), 0) AS earnings
		 FROM settlements
		 WHERE seller_id = ?
		   AND source_type = ?
		   AND status = ?
		   AND currency = ?
		   AND occurred_at >= ?
		   AND occurred_at < ?`,
		sellerID,
		sourceResourceSale,
		statusCompleted,
		currency,
		from,
		to,
	).Scan(&summary).Error
	return summary, err
}

func (r *repo) LifetimeSales(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, currency string) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(gross_amount - vat_amount), 0) AS net_sales,
		        COUNT(1) AS sale_count,
		        COALESCE(SUM(seller_earnings), 0) AS earnings
		 FROM settlements
		 WHERE seller_id = ?
		   AND source_type = ?
		   AND status = ?
		   AND currency = ?`,
		sellerID,
		sourceResourceSale,
		statusCompleted,
		currency,
	).Scan(&summary).Error
	return summary, err
}
