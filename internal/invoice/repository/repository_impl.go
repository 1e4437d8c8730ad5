package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlekit/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return take(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindBySettlementID(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) (*domain.Invoice, error) {
	return take(db.WithContext(ctx).Where("settlement_id = ?", settlementID))
}

func take(q *gorm.DB) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := q.Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// NextSequence must run inside the invoice transaction. The UPDATE takes the
// row lock, so concurrent callers for one prefix queue behind each other and a
// rollback returns the number.
func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, prefix string, at time.Time) (int64, error) {
	tx := db.WithContext(ctx)
	if err := tx.Exec(
		`INSERT INTO invoice_sequences (prefix, last_value, updated_at)
		 VALUES (?, 0, ?)
		 ON CONFLICT (prefix) DO NOTHING`,
		prefix,
		at,
	).Error; err != nil {
		return 0, err
	}

	result := tx.Exec(
		`UPDATE invoice_sequences
		 SET last_value = last_value + 1, updated_at = ?
		 WHERE prefix = ?`,
		at,
		prefix,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, domain.ErrInvalidPrefix
	}

	var next int64
	if err := tx.Raw(
		`SELECT last_value FROM invoice_sequences WHERE prefix = ?`,
		prefix,
	).Scan(&next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) (bool, error) {
	if invoice == nil {
		return false, nil
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "settlement_id"}},
			DoNothing: true,
		}).
		Create(invoice)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateDeliveryStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.DeliveryStatus, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET delivery_status = ?, updated_at = ? WHERE id = ?`,
		status,
		at,
		id,
	).Error
}

func (r *repo) InsertDelivery(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) error {
	if delivery == nil {
		return nil
	}
	return db.WithContext(ctx).Create(delivery).Error
}

func (r *repo) CountDeliveries(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Delivery{}).Where("invoice_id = ?", invoiceID).Count(&count).Error
	return int(count), err
}

func (r *repo) ListDeliveries(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Delivery, error) {
	var deliveries []domain.Delivery
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("attempt ASC").
		Find(&deliveries).Error
	return deliveries, err
}

func (r *repo) ListUndelivered(ctx context.Context, db *gorm.DB, limit int) ([]domain.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	var invoices []domain.Invoice
	err := db.WithContext(ctx).
		Where("delivery_status = ?", domain.DeliveryFailed).
		Order("updated_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}
