package service

import (
	"testing"

	"github.com/shopspring/decimal"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	vatdomain "github.com/smallbiznis/settlekit/internal/vat/domain"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testRates() rateconfigdomain.RateConfig {
	return rateconfigdomain.RateConfig{
		Version: 1,
		VAT: rateconfigdomain.VATSettings{
			Enabled:                 true,
			DomesticCountry:         "GB",
			DefaultRate:             decimal.RequireFromString("0.20"),
			PricingType:             rateconfigdomain.PricingInclusive,
			ApplicableJurisdictions: []string{"GB", "DE", "FR", "IE"},
			PerCountryRate:          map[string]decimal.Decimal{"DE": decimal.RequireFromString("0.19")},
			ReverseChargeEnabled:    true,
			SupportedCurrencies:     []string{"GBP", "EUR"},
		},
	}
}

func newCalc(t *testing.T) vatdomain.Calculator {
	return NewCalculator(Params{Log: zaptest.NewLogger(t)})
}

func TestUKConsumerInclusive(t *testing.T) {
	res, err := newCalc(t).Calculate(testRates(), vatdomain.Request{
		AmountMinorUnits: 1000,
		Currency:         "GBP",
		BuyerCountryCode: "GB",
	})
	require.NoError(t, err)
	assert.True(t, res.VATApplicable)
	assert.Equal(t, int64(167), res.VATAmount)
	assert.Equal(t, int64(833), res.NetAmount)
	assert.Equal(t, int64(1000), res.GrossAmount)
	assert.False(t, res.ReverseCharge)
}

func TestEUBusinessReverseCharge(t *testing.T) {
	res, err := newCalc(t).Calculate(testRates(), vatdomain.Request{
		AmountMinorUnits: 5000,
		Currency:         "EUR",
		BuyerCountryCode: "DE",
		IsBusinessBuyer:  true,
		BuyerVATNumber:   "DE123456789",
	})
	require.NoError(t, err)
	assert.True(t, res.ReverseCharge)
	assert.Equal(t, int64(0), res.VATAmount)
	assert.Equal(t, int64(5000), res.NetAmount)
	assert.Equal(t, vatdomain.ExemptReverseCharge, res.ExemptReason)
}

func TestMalformedVATNumberFailsClosed(t *testing.T) {
	res, err := newCalc(t).Calculate(testRates(), vatdomain.Request{
		AmountMinorUnits: 1190,
		Currency:         "EUR",
		BuyerCountryCode: "DE",
		IsBusinessBuyer:  true,
		BuyerVATNumber:   "DE12",
	})
	require.NoError(t, err)
	assert.False(t, res.ReverseCharge)
	assert.True(t, res.VATNumberRejected)
	assert.True(t, res.Rate.Equal(decimal.RequireFromString("0.19")))
	assert.Equal(t, int64(190), res.VATAmount)
	assert.Equal(t, int64(1000), res.NetAmount)
}

func TestDomesticBusinessBuyerPaysVAT(t *testing.T) {
	res, err := newCalc(t).Calculate(testRates(), vatdomain.Request{
		AmountMinorUnits: 1200,
		Currency:         "GBP",
		BuyerCountryCode: "GB",
		IsBusinessBuyer:  true,
		BuyerVATNumber:   "GB123456789",
	})
	require.NoError(t, err)
	assert.False(t, res.ReverseCharge)
	assert.Equal(t, int64(200), res.VATAmount)
}

func TestReverseChargeDisabled(t *testing.T) {
	cfg := testRates()
	cfg.VAT.ReverseChargeEnabled = false
	res, err := newCalc(t).Calculate(cfg, vatdomain.Request{
		AmountMinorUnits: 1000,
		Currency:         "EUR",
		BuyerCountryCode: "FR",
		IsBusinessBuyer:  true,
		BuyerVATNumber:   "FRXX123456789",
	})
	require.NoError(t, err)
	assert.False(t, res.ReverseCharge)
	assert.Equal(t, int64(167), res.VATAmount)
}

func TestNotApplicable(t *testing.T) {
	res, err := newCalc(t).Calculate(testRates(), vatdomain.Request{
		AmountMinorUnits: 1000,
		Currency:         "GBP",
		BuyerCountryCode: "US",
	})
	require.NoError(t, err)
	assert.False(t, res.VATApplicable)
	assert.Equal(t, vatdomain.ExemptOutsideJurisdiction, res.ExemptReason)
	assert.True(t, res.Rate.IsZero())
	assert.Equal(t, int64(1000), res.NetAmount)

	cfg := testRates()
	cfg.VAT.Enabled = false
	res, err = newCalc(t).Calculate(cfg, vatdomain.Request{AmountMinorUnits: 1000, Currency: "GBP", BuyerCountryCode: "GB"})
	require.NoError(t, err)
	assert.Equal(t, vatdomain.ExemptVATDisabled, res.ExemptReason)
	assert.Equal(t, int64(0), res.VATAmount)
}

func TestExclusivePricing(t *testing.T) {
	cfg := testRates()
	cfg.VAT.PricingType = rateconfigdomain.PricingExclusive
	res, err := newCalc(t).Calculate(cfg, vatdomain.Request{
		AmountMinorUnits: 833,
		Currency:         "GBP",
		BuyerCountryCode: "GB",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(833), res.NetAmount)
	assert.Equal(t, int64(167), res.VATAmount)
	assert.Equal(t, int64(1000), res.GrossAmount)
}

func TestExclusivePricingOnPaidAmount(t *testing.T) {
	cfg := testRates()
	cfg.VAT.PricingType = rateconfigdomain.PricingExclusive
	res, err := newCalc(t).Calculate(cfg, vatdomain.Request{
		AmountMinorUnits:  1000,
		Currency:          "GBP",
		BuyerCountryCode:  "GB",
		AmountIncludesVAT: true,
	})
	require.NoError(t, err)
	assert.Equal(t, rateconfigdomain.PricingExclusive, res.PricingType)
	assert.Equal(t, int64(167), res.VATAmount)
	assert.Equal(t, int64(833), res.NetAmount)
	assert.Equal(t, int64(1000), res.GrossAmount)
}

func TestUnsupportedCurrency(t *testing.T) {
	_, err := newCalc(t).Calculate(testRates(), vatdomain.Request{
		AmountMinorUnits: 1000,
		Currency:         "JPY",
		BuyerCountryCode: "GB",
	})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, "currency", errs.FieldOf(err))
	assert.ErrorIs(t, err, vatdomain.ErrUnsupportedCurrency)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, int64(3), RoundHalfUp(decimal.RequireFromString("2.5")))
	assert.Equal(t, int64(2), RoundHalfUp(decimal.RequireFromString("2.4999")))
	assert.Equal(t, int64(0), RoundHalfUp(decimal.RequireFromString("0.49")))
	// 25 * 0.10 = 2.5 exactly: ties go up.
	assert.Equal(t, int64(3), ExclusiveVAT(25, decimal.RequireFromString("0.10")))
}

func TestCalculateIsDeterministic(t *testing.T) {
	calc := newCalc(t)
	req := vatdomain.Request{AmountMinorUnits: 4321, Currency: "EUR", BuyerCountryCode: "IE"}
	first, err := calc.Calculate(testRates(), req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		next, err := calc.Calculate(testRates(), req)
		require.NoError(t, err)
		assert.Equal(t, first.VATAmount, next.VATAmount)
	}
}
