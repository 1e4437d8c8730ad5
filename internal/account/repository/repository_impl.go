package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlekit/internal/account/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	var acc domain.Account
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, kind, name, email, country_code, is_business, company_name, vat_number, school_id, created_at
		 FROM accounts
		 WHERE id = ?`,
		id,
	).Scan(&acc).Error
	if err != nil {
		return nil, err
	}
	if acc.ID == 0 {
		return nil, nil
	}
	return &acc, nil
}

func (r *repository) Exists(ctx context.Context, id snowflake.ID, kind domain.Kind) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM accounts WHERE id = ? AND kind = ?`,
		id,
		kind,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListIDs(ctx context.Context, kind domain.Kind, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = 500
	}
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT id FROM accounts
		 WHERE kind = ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		kind,
		afterID,
		limit,
	).Scan(&ids).Error
	return ids, err
}

func (r *repository) FindByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]domain.Account, error) {
	out := make(map[snowflake.ID]domain.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var accounts []domain.Account
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		out[acc.ID] = acc
	}
	return out, nil
}
