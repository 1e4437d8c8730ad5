// Package ratetest provides in-memory rate config stores for tests.
package ratetest

import (
	"context"
	"sync"

	"github.com/smallbiznis/settlekit/internal/config"
	"github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	"github.com/smallbiznis/settlekit/internal/rateconfig/service"
	"github.com/smallbiznis/settlekit/pkg/errs"
)

// Default is the built-in rate file as version 1.
func Default() domain.RateConfig {
	cfg := service.FromRateFile(config.DefaultRateFile())
	cfg.Version = 1
	cfg.Source = domain.SourceSeed
	return cfg
}

type Store struct {
	mu       sync.Mutex
	versions []domain.RateConfig
}

func NewStore(cfg domain.RateConfig) *Store {
	return &Store{versions: []domain.RateConfig{cfg}}
}

// Empty returns a store with nothing loaded, so Current fails.
func Empty() *Store {
	return &Store{}
}

func (s *Store) Current() (domain.RateConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.versions) == 0 {
		return domain.RateConfig{}, errs.Configuration("no rate config loaded", domain.ErrNotLoaded)
	}
	return s.versions[len(s.versions)-1], nil
}

func (s *Store) Update(_ context.Context, cfg domain.RateConfig, actor string) (domain.RateConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.RateConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Version = int64(len(s.versions) + 1)
	cfg.Source = domain.SourceAdmin
	cfg.Actor = actor
	s.versions = append(s.versions, cfg)
	return cfg, nil
}

func (s *Store) History(_ context.Context, limit int) ([]domain.RateConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RateConfig, 0, len(s.versions))
	for i := len(s.versions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.versions[i])
	}
	return out, nil
}

var _ domain.Store = (*Store)(nil)
