package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/settlekit/pkg/errs"
)

// Validate enforces tier ordering, rate bounds and code formats. Every error is
// an errs.ValidationError naming the offending field.
func (c RateConfig) Validate() error {
	if err := validateTiers(c.Tiers); err != nil {
		return err
	}
	if err := c.VAT.validate(); err != nil {
		return err
	}
	if !isCurrencyCode(c.TierCurrency) || !c.VAT.SupportsCurrency(c.TierCurrency) {
		return errs.Validation("tier_currency", ErrInvalidTierCurrency)
	}
	for currency, amount := range c.MinimumPayout {
		if !isCurrencyCode(currency) {
			return errs.Validation("minimum_payout."+currency, ErrInvalidCurrency)
		}
		if amount < 0 {
			return errs.Validation("minimum_payout."+currency, ErrInvalidMinimumPayout)
		}
	}
	for currency, fee := range c.TransactionFees {
		if !isCurrencyCode(currency) {
			return errs.Validation("transaction_fees."+currency, ErrInvalidCurrency)
		}
		if fee.FixedFee < 0 || fee.MinimumTicket < 0 || fee.FixedFee > fee.MinimumTicket {
			return errs.Validation("transaction_fees."+currency, ErrInvalidFee)
		}
	}
	return nil
}

func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return errs.Validation("tiers", ErrNoTiers)
	}
	if tiers[0].MinNetSales != 0 {
		return errs.Validation("tiers[0].min_net_sales", ErrFirstTierNotZero)
	}

	one := decimal.NewFromInt(1)
	seen := make(map[string]struct{}, len(tiers))
	for i, tier := range tiers {
		field := fmt.Sprintf("tiers[%d]", i)
		name := strings.ToLower(strings.TrimSpace(tier.Name))
		if name == "" {
			return errs.Validation(field+".name", ErrInvalidTierName)
		}
		if _, dup := seen[name]; dup {
			return errs.Validation(field+".name", ErrDuplicateTierName)
		}
		seen[name] = struct{}{}

		if tier.RoyaltyRate.IsNegative() || tier.RoyaltyRate.GreaterThan(one) {
			return errs.Validation(field+".royalty_rate", ErrInvalidRoyaltyRate)
		}

		last := i == len(tiers)-1
		if tier.MaxNetSales == nil {
			if !last {
				return errs.Validation(field+".max_net_sales", ErrOpenEndedTier)
			}
			continue
		}
		if *tier.MaxNetSales <= tier.MinNetSales {
			return errs.Validation(field+".max_net_sales", ErrTierOrder)
		}
		if !last && tiers[i+1].MinNetSales != *tier.MaxNetSales {
			return errs.Validation(fmt.Sprintf("tiers[%d].min_net_sales", i+1), ErrTierGap)
		}
	}
	return nil
}

func (v VATSettings) validate() error {
	if len(v.SupportedCurrencies) == 0 {
		return errs.Validation("vat.supported_currencies", ErrInvalidCurrency)
	}
	for _, currency := range v.SupportedCurrencies {
		if !isCurrencyCode(currency) {
			return errs.Validation("vat.supported_currencies", ErrInvalidCurrency)
		}
	}
	if !v.Enabled {
		return nil
	}
	if v.PricingType != PricingInclusive && v.PricingType != PricingExclusive {
		return errs.Validation("vat.pricing_type", ErrInvalidPricingType)
	}
	if !isCountryCode(v.DomesticCountry) {
		return errs.Validation("vat.domestic_country", ErrInvalidCountry)
	}
	if !validVATRate(v.DefaultRate) {
		return errs.Validation("vat.default_rate", ErrInvalidVATRate)
	}
	for _, country := range v.ApplicableJurisdictions {
		if !isCountryCode(country) {
			return errs.Validation("vat.applicable_jurisdictions", ErrInvalidCountry)
		}
	}
	for country, rate := range v.PerCountryRate {
		if !isCountryCode(country) {
			return errs.Validation("vat.per_country_rate."+country, ErrInvalidCountry)
		}
		if !validVATRate(rate) {
			return errs.Validation("vat.per_country_rate."+country, ErrInvalidVATRate)
		}
	}
	return nil
}

func validVATRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThan(decimal.NewFromInt(1))
}

func isCountryCode(value string) bool {
	return isUpperAlpha(value, 2)
}

func isCurrencyCode(value string) bool {
	return isUpperAlpha(value, 3)
}

func isUpperAlpha(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
