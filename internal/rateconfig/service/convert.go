package service

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/settlekit/internal/config"
	"github.com/smallbiznis/settlekit/internal/rateconfig/domain"
)

// FromRateFile converts the rates.yml shape into a domain snapshot. Float rates
// become decimals so later arithmetic is exact.
func FromRateFile(file config.RateFile) domain.RateConfig {
	tiers := make([]domain.Tier, 0, len(file.Tiers))
	for _, tier := range file.Tiers {
		var max *int64
		if tier.MaxNetSales != nil {
			v := *tier.MaxNetSales
			max = &v
		}
		tiers = append(tiers, domain.Tier{
			Name:        strings.ToLower(strings.TrimSpace(tier.Name)),
			RoyaltyRate: decimal.NewFromFloat(tier.RoyaltyRate),
			MinNetSales: tier.MinNetSales,
			MaxNetSales: max,
		})
	}

	perCountry := make(map[string]decimal.Decimal, len(file.VAT.PerCountryRate))
	for country, rate := range file.VAT.PerCountryRate {
		perCountry[strings.ToUpper(country)] = decimal.NewFromFloat(rate)
	}

	payouts := make(map[string]int64, len(file.MinimumPayout))
	for currency, amount := range file.MinimumPayout {
		payouts[strings.ToUpper(currency)] = amount
	}

	fees := make(map[string]domain.TransactionFee, len(file.TransactionFee))
	for currency, fee := range file.TransactionFee {
		fees[strings.ToUpper(currency)] = domain.TransactionFee{
			MinimumTicket: fee.MinimumTicket,
			FixedFee:      fee.FixedFee,
		}
	}

	supported := upperAll(file.VAT.SupportedCurrencies)
	tierCurrency := strings.ToUpper(strings.TrimSpace(file.TierCurrency))
	if tierCurrency == "" && len(supported) > 0 {
		tierCurrency = supported[0]
	}

	return domain.RateConfig{
		Tiers:        tiers,
		TierCurrency: tierCurrency,
		VAT: domain.VATSettings{
			Enabled:                 file.VAT.Enabled,
			DomesticCountry:         strings.ToUpper(strings.TrimSpace(file.VAT.DomesticCountry)),
			DefaultRate:             decimal.NewFromFloat(file.VAT.DefaultRate),
			PricingType:             domain.PricingType(strings.ToLower(strings.TrimSpace(file.VAT.PricingType))),
			ApplicableJurisdictions: upperAll(file.VAT.ApplicableJurisdictions),
			PerCountryRate:          perCountry,
			ReverseChargeEnabled:    file.VAT.ReverseChargeEnabled,
			SupportedCurrencies:     supported,
		},
		MinimumPayout:   payouts,
		TransactionFees: fees,
	}
}

func upperAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.ToUpper(strings.TrimSpace(value)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
