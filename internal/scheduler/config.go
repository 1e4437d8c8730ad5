package scheduler

import (
	"time"

	"github.com/smallbiznis/settlekit/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval          time.Duration
	DeliveryBatchSize    int
	TierRecomputeTimeout time.Duration
	DeliveryRetryTimeout time.Duration
	// EnabledJobs limits the jobs this instance runs. Empty means all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:          time.Hour,
		DeliveryBatchSize:    50,
		TierRecomputeTimeout: 30 * time.Minute,
		DeliveryRetryTimeout: 2 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	if cfg.SchedulerInterval > 0 {
		c.RunInterval = cfg.SchedulerInterval
	}
	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.DeliveryBatchSize <= 0 {
		c.DeliveryBatchSize = defaults.DeliveryBatchSize
	}
	if c.TierRecomputeTimeout <= 0 {
		c.TierRecomputeTimeout = defaults.TierRecomputeTimeout
	}
	if c.DeliveryRetryTimeout <= 0 {
		c.DeliveryRetryTimeout = defaults.DeliveryRetryTimeout
	}
	return c
}
