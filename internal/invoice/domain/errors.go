package domain

import "errors"

var (
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrSettlementNotFound = errors.New("settlement_not_found")
	ErrInvalidPrefix      = errors.New("invalid_invoice_prefix")
	ErrSettlementNotFinal = errors.New("settlement_not_completed")
)
