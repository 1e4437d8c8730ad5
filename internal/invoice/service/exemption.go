package service

import (
	"strings"

	"github.com/shopspring/decimal"
	vatdomain "github.com/smallbiznis/settlekit/internal/vat/domain"
)

// ExemptionProse is the VAT note printed on the invoice for a settlement that
// charged no VAT. It is empty when VAT was charged.
func ExemptionProse(reverseCharge bool, exemptReason, buyerVATNumber string) string {
	if reverseCharge || exemptReason == vatdomain.ExemptReverseCharge {
		note := "Reverse charge: VAT to be accounted for by the recipient under Article 196 of Council Directive 2006/112/EC."
		if number := strings.TrimSpace(buyerVATNumber); number != "" {
			note += " Customer VAT number: " + number + "."
		}
		return note
	}
	switch exemptReason {
	case vatdomain.ExemptOutsideJurisdiction:
		return "Outside the scope of VAT: the customer is located outside the VAT jurisdiction."
	case vatdomain.ExemptVATDisabled:
		return "No VAT has been charged on this supply."
	case "":
		return ""
	default:
		return "VAT exempt: " + strings.ReplaceAll(exemptReason, "_", " ") + "."
	}
}

func vatLabel(rate string) string {
	r, err := decimal.NewFromString(rate)
	if err != nil || r.IsZero() {
		return "VAT"
	}
	return "VAT (" + r.Mul(decimal.NewFromInt(100)).String() + "%)"
}
