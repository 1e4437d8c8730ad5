package domain

import "errors"

var (
	ErrSellerNotFound = errors.New("seller_not_found")
	ErrInvalidSeller  = errors.New("invalid_seller_id")
	ErrStateNotFound  = errors.New("seller_tier_state_not_found")
)
