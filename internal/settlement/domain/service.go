package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Settle is idempotent on the gateway transaction id.
	Settle(ctx context.Context, event PaymentEvent) (SettleResult, error)
	Get(ctx context.Context, id snowflake.ID) (Detail, error)
	GetByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (Detail, error)
	MarkRefunded(ctx context.Context, id snowflake.ID, reason string) (Detail, error)
	MarkDisputed(ctx context.Context, id snowflake.ID, reason string) (Detail, error)
}
