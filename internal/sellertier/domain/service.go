package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// CurrentRate never recomputes. A seller without state starts at the lowest tier.
	CurrentRate(ctx context.Context, sellerID snowflake.ID) (TierRate, error)
	RecomputeAll(ctx context.Context) (RecomputeReport, error)
	RecomputeSeller(ctx context.Context, sellerID snowflake.ID) (RecomputeOutcome, error)
	GetState(ctx context.Context, sellerID snowflake.ID) (State, error)
}
