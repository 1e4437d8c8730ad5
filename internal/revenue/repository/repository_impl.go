package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/settlekit/internal/revenue/domain"
	"gorm.io/gorm"
)

const statusCompleted = "completed"

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) DailyTotals(ctx context.Context, db *gorm.DB, currency string, from, to time.Time) ([]domain.DailyTotal, error) {
	day := utcDay(db)

	var totals []domain.DailyTotal
	err := db.WithContext(ctx).Raw(
		`SELECT `+day+` AS day,
		        source_type,
		        COALESCE(audience, '') AS audience,
		        COALESCE(SUM(platform_commission), 0) AS amount,
		        COUNT(1) AS cnt
		 FROM settlements
		 WHERE status = ?
		   AND currency = ?
		   AND occurred_at >= ?
		   AND occurred_at < ?
		 GROUP BY `+day+`, source_type, COALESCE(audience, '')
		 ORDER BY day`,
		statusCompleted,
		currency,
		from,
		to,
	).Scan(&totals).Error
	return totals, err
}

// utcDay renders occurred_at as a YYYY-MM-DD key in UTC for the connected dialect.
func utcDay(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	case "mysql":
		return "DATE_FORMAT(occurred_at, '%Y-%m-%d')"
	default:
		return "strftime('%Y-%m-%d', occurred_at)"
	}
}

func (r *repo) EntityTotals(ctx context.Context, db *gorm.DB, entityType domain.EntityType, currency string, from, to time.Time) ([]domain.EntityTotal, error) {
	column := "seller_id"
	sources := []string{string(domain.StreamResourceSale)}
	if entityType == domain.EntitySchool {
		column = "school_id"
		sources = []string{string(domain.StreamSubscription), string(domain.StreamAdPayment)}
	}

	var totals []domain.EntityTotal
	err := db.WithContext(ctx).Raw(
		`SELECT `+column+` AS entity_id,
		        COUNT(1) AS cnt,
		        COALESCE(SUM(gross_amount), 0) AS gross,
		        COALESCE(SUM(platform_commission), 0) AS revenue,
		        COALESCE(SUM(seller_earnings), 0) AS earnings
		 FROM settlements
		 WHERE status = ?
		   AND currency = ?
		   AND source_type IN ?
		   AND `+column+` IS NOT NULL
		   AND occurred_at >= ?
		   AND occurred_at < ?
		 GROUP BY `+column,
		statusCompleted,
		currency,
		sources,
		from,
		to,
	).Scan(&totals).Error
	return totals, err
}

func (r *repo) RecurringSubscriptions(ctx context.Context, db *gorm.DB, currency string) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := db.WithContext(ctx).
		Where("currency = ?", currency).
		Where("status IN ?", []domain.SubscriptionStatus{domain.SubscriptionActive, domain.SubscriptionTrialing}).
		Where("cancel_at_period_end = ?", false).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *repo) CountExistingAt(ctx context.Context, db *gorm.DB, at time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("started_at < ?", at).
		Where("(cancelled_at IS NULL OR cancelled_at >= ?)", at).
		Count(&count).Error
	return count, err
}

func (r *repo) CountCancelled(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("started_at < ?", from).
		Where("cancelled_at >= ? AND cancelled_at < ?", from, to).
		Count(&count).Error
	return count, err
}
