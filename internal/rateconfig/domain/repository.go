package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Version is one persisted RateConfig. Versions are append-only.
type Version struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	Version   int64          `gorm:"not null;uniqueIndex"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	Source    string         `gorm:"type:text;not null"`
	Actor     *string        `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (Version) TableName() string { return "rate_config_versions" }

type Repository interface {
	Latest(ctx context.Context) (*Version, error)
	// Insert reports false when the version number is already taken.
	Insert(ctx context.Context, v *Version) (bool, error)
	List(ctx context.Context, limit int) ([]Version, error)
}

// Store hands out the current snapshot. Implementations never block on I/O in Current.
type Store interface {
	Current() (RateConfig, error)
	Update(ctx context.Context, cfg RateConfig, actor string) (RateConfig, error)
	History(ctx context.Context, limit int) ([]RateConfig, error)
}
