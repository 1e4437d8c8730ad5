package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// GetOrCreate returns the settlement's invoice, generating it on first call.
	GetOrCreate(ctx context.Context, settlementID snowflake.ID, overrides *BuyerOverrides) (GetResult, error)
	Get(ctx context.Context, id snowflake.ID) (Invoice, error)
	RenderHTML(ctx context.Context, id snowflake.ID) (string, error)
	RetryFailedDeliveries(ctx context.Context, limit int) (DeliveryRetryReport, error)
}

// Notifier delivers an issued invoice. Failures are reported in the outcome,
// never as a panic or a blocked caller.
type Notifier interface {
	SendInvoice(ctx context.Context, invoice Invoice) DeliveryOutcome
}
