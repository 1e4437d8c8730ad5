package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type SourceType string

const (
	SourceResourceSale SourceType = "resource_sale"
	SourceSubscription SourceType = "subscription"
	SourceAdPayment    SourceType = "ad_payment"
)

// IsMarketplaceSale reports whether a seller earns a royalty on this source.
func (s SourceType) IsMarketplaceSale() bool {
	return s == SourceResourceSale
}

type Audience string

const (
	AudienceTeacher Audience = "teacher"
	AudienceSchool  Audience = "school"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
	StatusDisputed  Status = "disputed"
)

// PlatformTier is the tier snapshot recorded for sources with no seller.
const PlatformTier = "platform"

// PaymentEvent is a captured payment handed over by the gateway integration.
type PaymentEvent struct {
	GatewayTransactionID  string        `json:"gateway_transaction_id" validate:"required,max=255"`
	GrossAmountMinorUnits int64         `json:"gross_amount_minor_units" validate:"gt=0"`
	Currency              string        `json:"currency" validate:"required,len=3"`
	SourceType            SourceType    `json:"source_type" validate:"required,oneof=resource_sale subscription ad_payment"`
	BuyerCountryCode      string        `json:"buyer_country_code" validate:"required,len=2"`
	IsBusinessBuyer       bool          `json:"is_business_buyer"`
	BuyerVATNumber        *string       `json:"buyer_vat_number,omitempty" validate:"omitempty,max=32"`
	SellerID              *snowflake.ID `json:"seller_id,omitempty"`
	BuyerID               *snowflake.ID `json:"buyer_id,omitempty"`
	SchoolID              *snowflake.ID `json:"school_id,omitempty"`
	Audience              Audience      `json:"audience,omitempty" validate:"omitempty,oneof=teacher school"`
	OccurredAt            time.Time     `json:"occurred_at" validate:"required"`
}

// Breakdown is the split of a gross amount. Every field is in minor units.
type Breakdown struct {
	Gross      int64 `json:"gross"`
	VAT        int64 `json:"vat"`
	Fee        int64 `json:"transaction_fee"`
	Commission int64 `json:"platform_commission"`
	Earnings   int64 `json:"seller_earnings"`
}

func (b Breakdown) Net() int64 {
	return b.Gross - b.VAT - b.Fee
}

// Check enforces gross == vat + fee + commission + earnings with no negative part.
func (b Breakdown) Check() error {
	if b.VAT < 0 || b.Fee < 0 || b.Commission < 0 || b.Earnings < 0 {
		return fmt.Errorf("%w: negative component in %+v", ErrConservationViolated, b)
	}
	if b.Gross != b.VAT+b.Fee+b.Commission+b.Earnings {
		return fmt.Errorf("%w: %d != %d+%d+%d+%d", ErrConservationViolated, b.Gross, b.VAT, b.Fee, b.Commission, b.Earnings)
	}
	return nil
}

// Settlement is one captured payment with its frozen monetary split. Only
// Status, StatusReason and UpdatedAt ever change after insert.
type Settlement struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	GatewayTransactionID string          `gorm:"column:gateway_transaction_id;type:text;not null;uniqueIndex" json:"gateway_transaction_id"`
	SourceType           SourceType      `gorm:"column:source_type;type:text;not null;index" json:"source_type"`
	Currency             string          `gorm:"type:text;not null" json:"currency"`
	GrossAmount          int64           `gorm:"column:gross_amount;not null" json:"gross_amount"`
	VATAmount            int64           `gorm:"column:vat_amount;not null" json:"vat_amount"`
	VATRateApplied       decimal.Decimal `gorm:"column:vat_rate_applied;type:numeric(6,4);not null" json:"vat_rate_applied"`
	PricingType          string          `gorm:"column:pricing_type;type:text;not null" json:"pricing_type"`
	ReverseCharge        bool            `gorm:"column:reverse_charge;not null;default:false" json:"reverse_charge"`
	ExemptReason         string          `gorm:"column:exempt_reason;type:text" json:"exempt_reason,omitempty"`
	BuyerJurisdiction    string          `gorm:"column:buyer_jurisdiction;type:text;not null" json:"buyer_jurisdiction"`
	IsBusinessBuyer      bool            `gorm:"column:is_business_buyer;not null;default:false" json:"is_business_buyer"`
	BuyerVATNumber       *string         `gorm:"column:buyer_vat_number;type:text" json:"buyer_vat_number,omitempty"`
	TransactionFee       int64           `gorm:"column:transaction_fee;not null" json:"transaction_fee"`
	RoyaltyRateSnapshot  decimal.Decimal `gorm:"column:royalty_rate_snapshot;type:numeric(6,4);not null" json:"royalty_rate_snapshot"`
	TierSnapshot         string          `gorm:"column:tier_snapshot;type:text;not null" json:"tier_snapshot"`
	PlatformCommission   int64           `gorm:"column:platform_commission;not null" json:"platform_commission"`
	SellerEarnings       int64           `gorm:"column:seller_earnings;not null" json:"seller_earnings"`
	SellerID             *snowflake.ID   `gorm:"column:seller_id;index" json:"seller_id,omitempty"`
	BuyerID              *snowflake.ID   `gorm:"column:buyer_id" json:"buyer_id,omitempty"`
	SchoolID             *snowflake.ID   `gorm:"column:school_id;index" json:"school_id,omitempty"`
	Audience             Audience        `gorm:"type:text" json:"audience,omitempty"`
	RateConfigVersion    int64           `gorm:"column:rate_config_version;not null" json:"rate_config_version"`
	Status               Status          `gorm:"type:text;not null;index" json:"status"`
	StatusReason         *string         `gorm:"column:status_reason;type:text" json:"status_reason,omitempty"`
	OccurredAt           time.Time       `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
	CreatedAt            time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

func (Settlement) TableName() string { return "settlements" }

func (s Settlement) Breakdown() Breakdown {
	return Breakdown{
		Gross:      s.GrossAmount,
		VAT:        s.VATAmount,
		Fee:        s.TransactionFee,
		Commission: s.PlatformCommission,
		Earnings:   s.SellerEarnings,
	}
}

func (s Settlement) NetAmount() int64 {
	return s.Breakdown().Net()
}

type AdjustmentKind string

const (
	AdjustmentRefund  AdjustmentKind = "refund"
	AdjustmentDispute AdjustmentKind = "dispute"
)

// Adjustment reverses a settlement's split. Amounts are the negation of the
// original so summing a settlement with its adjustments nets to zero.
type Adjustment struct {
	ID                 snowflake.ID   `gorm:"primaryKey" json:"id"`
	SettlementID       snowflake.ID   `gorm:"column:settlement_id;not null;index" json:"settlement_id"`
	Kind               AdjustmentKind `gorm:"type:text;not null" json:"kind"`
	Reason             string         `gorm:"type:text;not null" json:"reason"`
	Currency           string         `gorm:"type:text;not null" json:"currency"`
	GrossAmount        int64          `gorm:"column:gross_amount;not null" json:"gross_amount"`
	VATAmount          int64          `gorm:"column:vat_amount;not null" json:"vat_amount"`
	TransactionFee     int64          `gorm:"column:transaction_fee;not null" json:"transaction_fee"`
	PlatformCommission int64          `gorm:"column:platform_commission;not null" json:"platform_commission"`
	SellerEarnings     int64          `gorm:"column:seller_earnings;not null" json:"seller_earnings"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
}

func (Adjustment) TableName() string { return "settlement_adjustments" }

// NewAdjustment negates every component of s.
func NewAdjustment(id snowflake.ID, s Settlement, kind AdjustmentKind, reason string, at time.Time) Adjustment {
	return Adjustment{
		ID:                 id,
		SettlementID:       s.ID,
		Kind:               kind,
		Reason:             strings.TrimSpace(reason),
		Currency:           s.Currency,
		GrossAmount:        -s.GrossAmount,
		VATAmount:          -s.VATAmount,
		TransactionFee:     -s.TransactionFee,
		PlatformCommission: -s.PlatformCommission,
		SellerEarnings:     -s.SellerEarnings,
		CreatedAt:          at,
	}
}

type SettleResult struct {
	Settlement Settlement `json:"settlement"`
	Created    bool       `json:"created"`
}

type Detail struct {
	Settlement
	Adjustments []Adjustment `json:"adjustments"`
}
