package service

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/settlekit/internal/settlement/domain"
	vatservice "github.com/smallbiznis/settlekit/internal/vat/service"
)

// Split divides gross into its parts. Commission is rounded half-up from the
// net; earnings take the remainder so the parts always sum back to gross.
func Split(gross, vat, fee int64, royaltyRate decimal.Decimal) (domain.Breakdown, error) {
	b := domain.Breakdown{Gross: gross, VAT: vat, Fee: fee}
	net := b.Net()
	if net < 0 {
		return domain.Breakdown{}, domain.ErrAmountBelowFee
	}
	platformShare := decimal.NewFromInt(1).Sub(royaltyRate)
	b.Commission = vatservice.RoundHalfUp(decimal.NewFromInt(net).Mul(platformShare))
	b.Earnings = net - b.Commission
	if err := b.Check(); err != nil {
		return domain.Breakdown{}, err
	}
	return b, nil
}
