package domain

import "errors"

var (
	ErrNotFound             = errors.New("settlement_not_found")
	ErrSellerRequired       = errors.New("seller_required")
	ErrUnknownSeller        = errors.New("unknown_seller")
	ErrAudienceRequired     = errors.New("audience_required")
	ErrAmountBelowFee       = errors.New("amount_below_transaction_fee")
	ErrConservationViolated = errors.New("conservation_violated")
	ErrInvalidTransition    = errors.New("invalid_status_transition")
	ErrInvalidReason        = errors.New("invalid_reason")
)
