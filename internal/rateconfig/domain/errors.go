package domain

import "errors"

var (
	ErrNoTiers              = errors.New("no_tiers")
	ErrInvalidTierName      = errors.New("invalid_tier_name")
	ErrFirstTierNotZero     = errors.New("first_tier_must_start_at_zero")
	ErrTierGap              = errors.New("tiers_not_contiguous")
	ErrTierOrder            = errors.New("tier_thresholds_not_increasing")
	ErrOpenEndedTier        = errors.New("only_last_tier_may_be_open_ended")
	ErrInvalidRoyaltyRate   = errors.New("invalid_royalty_rate")
	ErrDuplicateTierName    = errors.New("duplicate_tier_name")
	ErrInvalidVATRate       = errors.New("invalid_vat_rate")
	ErrInvalidPricingType   = errors.New("invalid_pricing_type")
	ErrInvalidCountry       = errors.New("invalid_country_code")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidTierCurrency  = errors.New("invalid_tier_currency")
	ErrInvalidFee           = errors.New("invalid_transaction_fee")
	ErrInvalidMinimumPayout = errors.New("invalid_minimum_payout")
	ErrVersionConflict      = errors.New("rate_config_version_conflict")
	ErrNotLoaded            = errors.New("rate_config_not_loaded")
)
