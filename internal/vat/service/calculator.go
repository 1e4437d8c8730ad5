package service

import (
	"strings"

	"github.com/shopspring/decimal"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	vatdomain "github.com/smallbiznis/settlekit/internal/vat/domain"
	"github.com/smallbiznis/settlekit/internal/vat/vatnumber"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log *zap.Logger
}

type calculator struct {
	log *zap.Logger
}

func NewCalculator(p Params) vatdomain.Calculator {
	return &calculator{log: p.Log.Named("vat.calculator")}
}

// Calculate is pure: the same config and request always give the same result.
func (c *calculator) Calculate(cfg rateconfigdomain.RateConfig, req vatdomain.Request) (vatdomain.Result, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if !cfg.VAT.SupportsCurrency(currency) {
		return vatdomain.Result{}, errs.Validation("currency", vatdomain.ErrUnsupportedCurrency)
	}
	if req.AmountMinorUnits < 0 {
		return vatdomain.Result{}, errs.Validation("amount", vatdomain.ErrInvalidAmount)
	}
	country := strings.ToUpper(strings.TrimSpace(req.BuyerCountryCode))
	if len(country) != 2 {
		return vatdomain.Result{}, errs.Validation("buyer_country_code", vatdomain.ErrInvalidCountry)
	}

	amount := req.AmountMinorUnits
	settings := cfg.VAT

	if !settings.Enabled {
		return notApplicable(amount, vatdomain.ExemptVATDisabled), nil
	}
	if !settings.Applies(country) {
		return notApplicable(amount, vatdomain.ExemptOutsideJurisdiction), nil
	}

	rejected := false
	vatNumber := strings.TrimSpace(req.BuyerVATNumber)
	crossBorder := !strings.EqualFold(country, settings.DomesticCountry)
	if req.IsBusinessBuyer && vatNumber != "" && settings.ReverseChargeEnabled && crossBorder {
		if vatnumber.Valid(country, vatNumber) {
			return vatdomain.Result{
				VATApplicable: false,
				Rate:          decimal.Zero,
				PricingType:   settings.PricingType,
				VATAmount:     0,
				NetAmount:     amount,
				GrossAmount:   amount,
				ReverseCharge: true,
				ExemptReason:  vatdomain.ExemptReverseCharge,
			}, nil
		}
		// Fail closed: a malformed number is charged like a consumer.
		rejected = true
		c.log.Warn("vat number failed format check, applying consumer treatment",
			zap.String("country", country),
		)
	}

	rate := settings.RateFor(country)
	result := vatdomain.Result{
		VATApplicable:     true,
		Rate:              rate,
		PricingType:       settings.PricingType,
		VATNumberRejected: rejected,
	}

	switch {
	case settings.PricingType == rateconfigdomain.PricingExclusive && !req.AmountIncludesVAT:
		result.VATAmount = ExclusiveVAT(amount, rate)
		result.NetAmount = amount
		result.GrossAmount = amount + result.VATAmount
	default:
		result.VATAmount = InclusiveVAT(amount, rate)
		result.NetAmount = amount - result.VATAmount
		result.GrossAmount = amount
	}
	return result, nil
}

func notApplicable(amount int64, reason string) vatdomain.Result {
	return vatdomain.Result{
		VATApplicable: false,
		Rate:          decimal.Zero,
		NetAmount:     amount,
		GrossAmount:   amount,
		ExemptReason:  reason,
	}
}

// InclusiveVAT extracts the tax contained in amount: round(amount*rate/(1+rate)).
func InclusiveVAT(amount int64, rate decimal.Decimal) int64 {
	if amount <= 0 || !rate.IsPositive() {
		return 0
	}
	one := decimal.NewFromInt(1)
	vat := decimal.NewFromInt(amount).Mul(rate).DivRound(one.Add(rate), 16)
	return RoundHalfUp(vat)
}

// ExclusiveVAT is the tax added on top of amount: round(amount*rate).
func ExclusiveVAT(amount int64, rate decimal.Decimal) int64 {
	if amount <= 0 || !rate.IsPositive() {
		return 0
	}
	return RoundHalfUp(decimal.NewFromInt(amount).Mul(rate))
}

// RoundHalfUp rounds to the nearest minor unit with ties going up.
func RoundHalfUp(value decimal.Decimal) int64 {
	return value.Add(decimal.New(5, -1)).Floor().IntPart()
}
