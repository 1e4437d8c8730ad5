package domain

import (
	"errors"

	"github.com/shopspring/decimal"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
)

var (
	ErrUnsupportedCurrency = errors.New("unsupported_currency")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidCountry      = errors.New("invalid_country_code")
)

// Exemption reasons stored on the settlement and rendered on the invoice.
const (
	ExemptVATDisabled         = "vat_disabled"
	ExemptOutsideJurisdiction = "outside_jurisdiction"
	ExemptReverseCharge       = "reverse_charge"
)

type Request struct {
	AmountMinorUnits int64
	Currency         string
	BuyerCountryCode string
	IsBusinessBuyer  bool
	BuyerVATNumber   string
	// AmountIncludesVAT marks an amount the buyer already paid. VAT is then
	// extracted from it even when prices are configured as exclusive.
	AmountIncludesVAT bool
}

type Result struct {
	VATApplicable bool
	Rate          decimal.Decimal
	PricingType   rateconfigdomain.PricingType
	VATAmount     int64
	NetAmount     int64
	// GrossAmount is what the buyer pays: the input amount for inclusive
	// pricing or a paid amount, amount plus VAT for exclusive pricing.
	GrossAmount   int64
	ReverseCharge bool
	ExemptReason  string
	// VATNumberRejected is set when a business buyer's number failed the format
	// check and consumer treatment was applied instead.
	VATNumberRejected bool
}

type Calculator interface {
	Calculate(cfg rateconfigdomain.RateConfig, req Request) (Result, error)
}
