package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SellerTierState is the persisted tier of one seller. It is only written on
// lazy creation and by recomputation.
type SellerTierState struct {
	SellerID             snowflake.ID    `gorm:"primaryKey;column:seller_id" json:"seller_id"`
	CurrentTier          string          `gorm:"column:current_tier;type:text;not null" json:"current_tier"`
	CurrentRoyaltyRate   decimal.Decimal `gorm:"column:current_royalty_rate;type:numeric(6,4);not null" json:"current_royalty_rate"`
	RollingNetSales12mo  int64           `gorm:"column:rolling_net_sales_12mo;not null;default:0" json:"rolling_net_sales_12mo"`
	RollingSaleCount12mo int64           `gorm:"column:rolling_sale_count_12mo;not null;default:0" json:"rolling_sale_count_12mo"`
	LifetimeNetSales     int64           `gorm:"column:lifetime_net_sales;not null;default:0" json:"lifetime_net_sales"`
	LifetimeEarnings     int64           `gorm:"column:lifetime_earnings;not null;default:0" json:"lifetime_earnings"`
	RateConfigVersion    int64           `gorm:"column:rate_config_version;not null" json:"rate_config_version"`
	LastRecomputedAt     *time.Time      `gorm:"column:last_recomputed_at" json:"last_recomputed_at,omitempty"`
	CreatedAt            time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

func (SellerTierState) TableName() string { return "seller_tier_states" }

// TierChange is one entry of a seller's tier history. Rows are append only.
type TierChange struct {
	ID                  snowflake.ID      `gorm:"primaryKey" json:"id"`
	SellerID            snowflake.ID      `gorm:"column:seller_id;not null;index" json:"seller_id"`
	FromTier            string            `gorm:"column:from_tier;type:text;not null" json:"from_tier"`
	ToTier              string            `gorm:"column:to_tier;type:text;not null" json:"to_tier"`
	FromRoyaltyRate     decimal.Decimal   `gorm:"column:from_royalty_rate;type:numeric(6,4);not null" json:"from_royalty_rate"`
	ToRoyaltyRate       decimal.Decimal   `gorm:"column:to_royalty_rate;type:numeric(6,4);not null" json:"to_royalty_rate"`
	RollingNetSales12mo int64             `gorm:"column:rolling_net_sales_12mo;not null" json:"rolling_net_sales_12mo"`
	RateConfigVersion   int64             `gorm:"column:rate_config_version;not null" json:"rate_config_version"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	ChangedAt           time.Time         `gorm:"column:changed_at;not null" json:"changed_at"`
}

func (TierChange) TableName() string { return "seller_tier_changes" }

// TierRate is what settlement snapshots: the tier and royalty in effect now.
type TierRate struct {
	SellerID          snowflake.ID    `json:"seller_id"`
	Tier              string          `json:"tier"`
	RoyaltyRate       decimal.Decimal `json:"royalty_rate"`
	RateConfigVersion int64           `json:"rate_config_version"`
}

// SalesSummary aggregates completed resource sales for one seller.
type SalesSummary struct {
	NetSales  int64
	SaleCount int64
	Earnings  int64
}

// State is the read model returned to callers, with history attached.
type State struct {
	SellerTierState
	TierHistory []TierChange `json:"tier_history"`
}

type RecomputeOutcome string

const (
	OutcomeUpgraded   RecomputeOutcome = "upgraded"
	OutcomeDowngraded RecomputeOutcome = "downgraded"
	OutcomeUnchanged  RecomputeOutcome = "unchanged"
)

type RecomputeReport struct {
	Recalculated int           `json:"recalculated"`
	Upgraded     int           `json:"upgraded"`
	Downgraded   int           `json:"downgraded"`
	Unchanged    int           `json:"unchanged"`
	Errors       int           `json:"errors"`
	Failures     []SellerError `json:"failures,omitempty"`
}

type SellerError struct {
	SellerID snowflake.ID `json:"seller_id"`
	Err      error        `json:"-"`
	Message  string       `json:"error"`
}

func (r *RecomputeReport) Record(outcome RecomputeOutcome) {
	r.Recalculated++
	switch outcome {
	case OutcomeUpgraded:
		r.Upgraded++
	case OutcomeDowngraded:
		r.Downgraded++
	default:
		r.Unchanged++
	}
}
