package domain

import "errors"

var (
	ErrInvalidPreset      = errors.New("invalid_preset")
	ErrInvalidRange       = errors.New("invalid_range")
	ErrInvalidGranularity = errors.New("invalid_granularity")
	ErrInvalidStream      = errors.New("invalid_stream")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidEntityType  = errors.New("invalid_entity_type")
)
