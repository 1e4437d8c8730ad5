package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// DailyTotals sums completed settlements in currency with occurred_at in
	// [from, to), grouped by UTC day, source type and audience.
	DailyTotals(ctx context.Context, db *gorm.DB, currency string, from, to time.Time) ([]DailyTotal, error)
	EntityTotals(ctx context.Context, db *gorm.DB, entityType EntityType, currency string, from, to time.Time) ([]EntityTotal, error)
	// RecurringSubscriptions lists active or trialing subscriptions that are not set to cancel.
	RecurringSubscriptions(ctx context.Context, db *gorm.DB, currency string) ([]Subscription, error)
	CountExistingAt(ctx context.Context, db *gorm.DB, at time.Time) (int64, error)
	// CountCancelled counts subscriptions that existed at from and were cancelled in [from, to).
	CountCancelled(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error)
}
