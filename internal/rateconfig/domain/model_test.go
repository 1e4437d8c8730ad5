package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func testConfig() RateConfig {
	return RateConfig{
		Tiers: []Tier{
			{Name: "bronze", RoyaltyRate: decimal.RequireFromString("0.60"), MinNetSales: 0, MaxNetSales: ptr(100_000)},
			{Name: "silver", RoyaltyRate: decimal.RequireFromString("0.70"), MinNetSales: 100_000, MaxNetSales: ptr(500_000)},
			{Name: "gold", RoyaltyRate: decimal.RequireFromString("0.80"), MinNetSales: 500_000},
		},
		TierCurrency: "GBP",
		VAT: VATSettings{
			Enabled:                 true,
			DomesticCountry:         "GB",
			DefaultRate:             decimal.RequireFromString("0.20"),
			PricingType:             PricingInclusive,
			ApplicableJurisdictions: []string{"GB", "DE", "FR"},
			PerCountryRate:          map[string]decimal.Decimal{"DE": decimal.RequireFromString("0.19")},
			ReverseChargeEnabled:    true,
			SupportedCurrencies:     []string{"GBP", "EUR"},
		},
		MinimumPayout:   map[string]int64{"GBP": 1000},
		TransactionFees: map[string]TransactionFee{"GBP": {MinimumTicket: 300, FixedFee: 20}},
	}
}

func TestResolveTierBoundaries(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, "bronze", cfg.ResolveTier(0).Name)
	assert.Equal(t, "bronze", cfg.ResolveTier(99_999).Name)
	assert.Equal(t, "silver", cfg.ResolveTier(100_000).Name, "exactly 1000.00 is silver")
	assert.Equal(t, "gold", cfg.ResolveTier(500_000).Name)
	assert.Equal(t, "gold", cfg.ResolveTier(90_000_000).Name)
	assert.Equal(t, "bronze", cfg.ResolveTier(-50).Name)
}

func TestTierHelpers(t *testing.T) {
	cfg := testConfig()
	silver, ok := cfg.TierByName("SILVER")
	require.True(t, ok)
	assert.True(t, silver.PlatformFeeRate().Equal(decimal.RequireFromString("0.30")))
	assert.True(t, silver.Contains(100_000))
	assert.False(t, silver.Contains(500_000))
	assert.Equal(t, 2, cfg.TierRank("gold"))
	assert.Equal(t, -1, cfg.TierRank("platinum"))
}

func TestFeeAndPayout(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, int64(20), cfg.FeeFor("gbp", 299))
	assert.Equal(t, int64(0), cfg.FeeFor("GBP", 300))
	assert.Equal(t, int64(0), cfg.FeeFor("EUR", 10))
	assert.Equal(t, int64(1000), cfg.MinimumPayoutFor("GBP"))
}

func TestVATSettingsRateFor(t *testing.T) {
	vat := testConfig().VAT
	assert.True(t, vat.RateFor("de").Equal(decimal.RequireFromString("0.19")))
	assert.True(t, vat.RateFor("FR").Equal(decimal.RequireFromString("0.20")))
	assert.True(t, vat.Applies("gb"))
	assert.False(t, vat.Applies("US"))
	assert.True(t, vat.SupportsCurrency("eur"))
	assert.False(t, vat.SupportsCurrency("JPY"))
}

func TestValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*RateConfig)
		field  string
		err    error
	}{
		{"no tiers", func(c *RateConfig) { c.Tiers = nil }, "tiers", ErrNoTiers},
		{"first not zero", func(c *RateConfig) { c.Tiers[0].MinNetSales = 10 }, "tiers[0].min_net_sales", ErrFirstTierNotZero},
		{"gap", func(c *RateConfig) { c.Tiers[1].MinNetSales = 100_001 }, "tiers[1].min_net_sales", ErrTierGap},
		{"open middle", func(c *RateConfig) { c.Tiers[1].MaxNetSales = nil }, "tiers[1].max_net_sales", ErrOpenEndedTier},
		{"inverted", func(c *RateConfig) { c.Tiers[0].MaxNetSales = ptr(0) }, "tiers[0].max_net_sales", ErrTierOrder},
		{"royalty above one", func(c *RateConfig) { c.Tiers[2].RoyaltyRate = decimal.RequireFromString("1.01") }, "tiers[2].royalty_rate", ErrInvalidRoyaltyRate},
		{"duplicate name", func(c *RateConfig) { c.Tiers[1].Name = "Bronze" }, "tiers[1].name", ErrDuplicateTierName},
		{"pricing type", func(c *RateConfig) { c.VAT.PricingType = "gross" }, "vat.pricing_type", ErrInvalidPricingType},
		{"negative vat", func(c *RateConfig) { c.VAT.DefaultRate = decimal.RequireFromString("-0.1") }, "vat.default_rate", ErrInvalidVATRate},
		{"bad country", func(c *RateConfig) { c.VAT.ApplicableJurisdictions = []string{"GBR"} }, "vat.applicable_jurisdictions", ErrInvalidCountry},
		{"no currencies", func(c *RateConfig) { c.VAT.SupportedCurrencies = nil }, "vat.supported_currencies", ErrInvalidCurrency},
		{"tier currency missing", func(c *RateConfig) { c.TierCurrency = "" }, "tier_currency", ErrInvalidTierCurrency},
		{"tier currency unsupported", func(c *RateConfig) { c.TierCurrency = "USD" }, "tier_currency", ErrInvalidTierCurrency},
		{"fee above ticket", func(c *RateConfig) { c.TransactionFees["GBP"] = TransactionFee{MinimumTicket: 10, FixedFee: 20} }, "transaction_fees.GBP", ErrInvalidFee},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
			assert.Equal(t, tc.field, errs.FieldOf(err))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}
