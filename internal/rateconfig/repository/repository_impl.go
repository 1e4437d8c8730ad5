package repository

import (
	"context"

	"github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Latest(ctx context.Context) (*domain.Version, error) {
	var v domain.Version
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, version, payload, source, actor, created_at
		 FROM rate_config_versions
		 ORDER BY version DESC
		 LIMIT 1`,
	).Scan(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *repository) Insert(ctx context.Context, v *domain.Version) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO rate_config_versions (id, version, payload, source, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (version) DO NOTHING`,
		v.ID,
		v.Version,
		v.Payload,
		v.Source,
		v.Actor,
		v.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, limit int) ([]domain.Version, error) {
	if limit <= 0 {
		limit = 20
	}
	var versions []domain.Version
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, version, payload, source, actor, created_at
		 FROM rate_config_versions
		 ORDER BY version DESC
		 LIMIT ?`,
		limit,
	).Scan(&versions).Error
	return versions, err
}
