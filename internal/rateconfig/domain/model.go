package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PricingType string

const (
	PricingInclusive PricingType = "inclusive"
	PricingExclusive PricingType = "exclusive"
)

type Source string

const (
	SourceSeed  Source = "seed"
	SourceFile  Source = "file"
	SourceAdmin Source = "admin"
)

// Tier covers net sales in [MinNetSales, MaxNetSales). A nil MaxNetSales is open ended.
type Tier struct {
	Name        string          `json:"name"`
	RoyaltyRate decimal.Decimal `json:"royalty_rate"`
	MinNetSales int64           `json:"min_net_sales"`
	MaxNetSales *int64          `json:"max_net_sales,omitempty"`
}

// PlatformFeeRate is the share the platform keeps: 1 - royalty.
func (t Tier) PlatformFeeRate() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(t.RoyaltyRate)
}

func (t Tier) Contains(net int64) bool {
	if net < t.MinNetSales {
		return false
	}
	return t.MaxNetSales == nil || net < *t.MaxNetSales
}

type VATSettings struct {
	Enabled                 bool                       `json:"enabled"`
	DomesticCountry         string                     `json:"domestic_country"`
	DefaultRate             decimal.Decimal            `json:"default_rate"`
	PricingType             PricingType                `json:"pricing_type"`
	ApplicableJurisdictions []string                   `json:"applicable_jurisdictions"`
	PerCountryRate          map[string]decimal.Decimal `json:"per_country_rate,omitempty"`
	ReverseChargeEnabled    bool                       `json:"reverse_charge_enabled"`
	SupportedCurrencies     []string                   `json:"supported_currencies"`
}

// Applies reports whether country is inside the configured VAT jurisdictions.
func (v VATSettings) Applies(country string) bool {
	return containsFold(v.ApplicableJurisdictions, country)
}

// RateFor returns the per-country override or the default rate.
func (v VATSettings) RateFor(country string) decimal.Decimal {
	if rate, ok := v.PerCountryRate[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return rate
	}
	return v.DefaultRate
}

func (v VATSettings) SupportsCurrency(currency string) bool {
	return containsFold(v.SupportedCurrencies, currency)
}

type TransactionFee struct {
	MinimumTicket int64 `json:"minimum_ticket"`
	FixedFee      int64 `json:"fixed_fee"`
}

// RateConfig is an immutable snapshot. Callers must not mutate the maps or slices.
type RateConfig struct {
	Version int64  `json:"version"`
	Tiers   []Tier `json:"tiers"`
	// TierCurrency is the unit of every tier threshold. Only sales settled in it count toward a tier.
	TierCurrency    string                    `json:"tier_currency"`
	VAT             VATSettings               `json:"vat"`
	MinimumPayout   map[string]int64          `json:"minimum_payout"`
	TransactionFees map[string]TransactionFee `json:"transaction_fees"`
	Source          Source                    `json:"source"`
	Actor           string                    `json:"actor,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

func (c RateConfig) LowestTier() Tier {
	return c.Tiers[0]
}

// ResolveTier picks the tier containing net. Scanning from the top means a value
// sitting on a boundary lands in the higher tier.
func (c RateConfig) ResolveTier(net int64) Tier {
	for i := len(c.Tiers) - 1; i >= 0; i-- {
		if net >= c.Tiers[i].MinNetSales {
			return c.Tiers[i]
		}
	}
	return c.LowestTier()
}

func (c RateConfig) TierByName(name string) (Tier, bool) {
	for _, tier := range c.Tiers {
		if strings.EqualFold(tier.Name, name) {
			return tier, true
		}
	}
	return Tier{}, false
}

// TierRank is the index of the named tier, -1 when unknown.
func (c RateConfig) TierRank(name string) int {
	for i, tier := range c.Tiers {
		if strings.EqualFold(tier.Name, name) {
			return i
		}
	}
	return -1
}

// FeeFor returns the fixed fee charged on gross below the currency's minimum ticket.
func (c RateConfig) FeeFor(currency string, gross int64) int64 {
	fee, ok := c.TransactionFees[strings.ToUpper(currency)]
	if !ok {
		return 0
	}
	if gross < fee.MinimumTicket {
		return fee.FixedFee
	}
	return 0
}

func (c RateConfig) MinimumPayoutFor(currency string) int64 {
	return c.MinimumPayout[strings.ToUpper(currency)]
}

func containsFold(values []string, value string) bool {
	value = strings.TrimSpace(value)
	for _, candidate := range values {
		if strings.EqualFold(candidate, value) {
			return true
		}
	}
	return false
}
