package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlekit/internal/settlement/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *domain.Settlement) (bool, error) {
	if s == nil {
		return false, nil
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_transaction_id"}},
			DoNothing: true,
		}).
		Create(s)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Settlement, error) {
	return first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Settlement, error) {
	return first(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) FindByGatewayTransactionID(ctx context.Context, db *gorm.DB, gatewayTransactionID string) (*domain.Settlement, error) {
	return first(db.WithContext(ctx).Where("gateway_transaction_id = ?", gatewayTransactionID))
}

func first(q *gorm.DB) (*domain.Settlement, error) {
	var s domain.Settlement
	err := q.Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStatus is a compare-and-set on status; false means the row was not in from.
func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, reason string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE settlements
		 SET status = ?, status_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		reason,
		at,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertAdjustment(ctx context.Context, db *gorm.DB, adj *domain.Adjustment) error {
	if adj == nil {
		return nil
	}
	return db.WithContext(ctx).Create(adj).Error
}

func (r *repo) ListAdjustments(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) ([]domain.Adjustment, error) {
	var adjustments []domain.Adjustment
	err := db.WithContext(ctx).
		Where("settlement_id = ?", settlementID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&adjustments).Error
	return adjustments, err
}
