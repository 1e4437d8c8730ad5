package domain

import (
	"context"
	"time"
)

// Service answers read-only revenue questions over settled money.
type Service interface {
	GetOverview(ctx context.Context, q Query) (Overview, error)
	GetTimeSeries(ctx context.Context, q Query) (TimeSeries, error)
	GetMRR(ctx context.Context, currency string) (MRR, error)
	GetChurn(ctx context.Context, month time.Time) (Churn, error)
	GetBreakdown(ctx context.Context, q BreakdownQuery) (Breakdown, error)
}
