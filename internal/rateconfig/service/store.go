package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/settlekit/internal/audit/domain"
	"github.com/smallbiznis/settlekit/internal/clock"
	"github.com/smallbiznis/settlekit/internal/config"
	"github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	fileActor              = "rates.yml"
	defaultRefreshInterval = 30 * time.Second
)

type Params struct {
	fx.In

	Lc     fx.Lifecycle  `optional:"true"`
	Cfg    config.Config `optional:"true"`
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Holder *config.RateFileHolder
	Audit  auditdomain.Service `optional:"true"`
}

// Store serves the current RateConfig from memory and appends a new persisted
// version on every admin update or rates.yml reload.
type Store struct {
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   domain.Repository
	holder *config.RateFileHolder
	audit  auditdomain.Service

	current atomic.Pointer[domain.RateConfig]
	writeMu sync.Mutex

	refreshInterval time.Duration
	stopRefresh     context.CancelFunc
}

func NewStore(p Params) *Store {
	s := &Store{
		log:    p.Log.Named("rateconfig.store"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		holder: p.Holder,
		audit:  p.Audit,

		refreshInterval: p.Cfg.RateRefreshInterval,
	}
	if s.refreshInterval <= 0 {
		s.refreshInterval = defaultRefreshInterval
	}

	if p.Lc != nil {
		p.Lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := s.Load(ctx); err != nil {
					return err
				}
				watchCtx, cancel := context.WithCancel(context.Background())
				s.stopRefresh = cancel
				go s.watch(watchCtx)
				return nil
			},
			OnStop: func(context.Context) error {
				if s.stopRefresh != nil {
					s.stopRefresh()
				}
				return nil
			},
		})
	}
	if p.Holder != nil {
		p.Holder.Subscribe(func(file config.RateFile) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := s.publish(ctx, FromRateFile(file), domain.SourceFile, fileActor); err != nil {
				s.log.Warn("rate file reload not published", zap.Error(err))
			}
		})
	}
	return s
}

// Load reads the latest persisted version. An empty table is seeded from the
// rate file holder so there is always a version 1.
func (s *Store) Load(ctx context.Context) error {
	latest, err := s.repo.Latest(ctx)
	if err != nil {
		return err
	}
	if latest != nil {
		cfg, err := decodeVersion(*latest)
		if err != nil {
			return errs.Configuration("stored rate config is unreadable", err)
		}
		if err := cfg.Validate(); err != nil {
			return errs.Configuration("stored rate config is invalid", err)
		}
		s.current.Store(&cfg)
		s.log.Info("rate config loaded", zap.Int64("version", cfg.Version))
		return nil
	}

	if s.holder == nil {
		return errs.Configuration("no rate config stored and no rate file", domain.ErrNotLoaded)
	}
	source := domain.SourceSeed
	if s.holder.FromFile() {
		source = domain.SourceFile
	}
	_, err = s.publish(ctx, FromRateFile(s.holder.Get()), source, fileActor)
	return err
}

// Current returns the in-memory snapshot. It never touches the database.
func (s *Store) Current() (domain.RateConfig, error) {
	cfg := s.current.Load()
	if cfg == nil {
		return domain.RateConfig{}, errs.Configuration("rate config not loaded", domain.ErrNotLoaded)
	}
	return *cfg, nil
}

// Refresh adopts a newer version published by another process, such as an
// admin update handled by a different API replica. It reports whether the
// in-memory snapshot moved.
func (s *Store) Refresh(ctx context.Context) (bool, error) {
	latest, err := s.repo.Latest(ctx)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}
	if current := s.current.Load(); current != nil && current.Version >= latest.Version {
		return false, nil
	}

	cfg, err := decodeVersion(*latest)
	if err != nil {
		return false, errs.Configuration("stored rate config is unreadable", err)
	}
	if err := cfg.Validate(); err != nil {
		return false, errs.Configuration("stored rate config is invalid", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	previous := s.current.Load()
	if previous != nil && previous.Version >= cfg.Version {
		return false, nil
	}
	s.current.Store(&cfg)

	fields := []zap.Field{zap.Int64("version", cfg.Version), zap.String("source", string(cfg.Source))}
	if previous != nil {
		fields = append(fields, zap.Int64("previous_version", previous.Version))
	}
	s.log.Info("rate config refreshed", fields...)
	return true, nil
}

func (s *Store) watch(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, s.refreshInterval)
			if _, err := s.Refresh(refreshCtx); err != nil {
				s.log.Warn("rate config refresh failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Update validates cfg and persists it as the next version.
func (s *Store) Update(ctx context.Context, cfg domain.RateConfig, actor string) (domain.RateConfig, error) {
	return s.publish(ctx, cfg, domain.SourceAdmin, actor)
}

func (s *Store) History(ctx context.Context, limit int) ([]domain.RateConfig, error) {
	versions, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RateConfig, 0, len(versions))
	for _, v := range versions {
		cfg, err := decodeVersion(v)
		if err != nil {
			return nil, errs.Configuration("stored rate config is unreadable", err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (s *Store) publish(ctx context.Context, cfg domain.RateConfig, source domain.Source, actor string) (domain.RateConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.RateConfig{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var previous *domain.RateConfig
	next := int64(1)
	if current := s.current.Load(); current != nil {
		previous = current
		next = current.Version + 1
	}

	cfg.Version = next
	cfg.Source = source
	cfg.Actor = actor
	cfg.CreatedAt = s.clock.Now().UTC()

	payload, err := json.Marshal(cfg)
	if err != nil {
		return domain.RateConfig{}, err
	}
	record := &domain.Version{
		ID:        s.genID.Generate(),
		Version:   cfg.Version,
		Payload:   datatypes.JSON(payload),
		Source:    string(source),
		CreatedAt: cfg.CreatedAt,
	}
	if actor != "" {
		record.Actor = &actor
	}

	inserted, err := s.repo.Insert(ctx, record)
	if err != nil {
		return domain.RateConfig{}, err
	}
	if !inserted {
		// Another instance published this version first; adopt theirs.
		if err := s.reloadLocked(ctx); err != nil {
			s.log.Warn("reload after version conflict failed", zap.Error(err))
		}
		return domain.RateConfig{}, domain.ErrVersionConflict
	}

	s.current.Store(&cfg)
	s.log.Info("rate config published",
		zap.Int64("version", cfg.Version),
		zap.String("source", string(source)),
	)
	s.recordAudit(ctx, previous, cfg)
	return cfg, nil
}

func (s *Store) reloadLocked(ctx context.Context) error {
	latest, err := s.repo.Latest(ctx)
	if err != nil || latest == nil {
		return err
	}
	cfg, err := decodeVersion(*latest)
	if err != nil {
		return err
	}
	s.current.Store(&cfg)
	return nil
}

func (s *Store) recordAudit(ctx context.Context, previous *domain.RateConfig, cfg domain.RateConfig) {
	if s.audit == nil {
		return
	}
	actorType := string(auditdomain.ActorTypeSystem)
	if cfg.Source == domain.SourceAdmin {
		actorType = string(auditdomain.ActorTypeAdmin)
	}
	metadata := map[string]any{
		"version": cfg.Version,
		"source":  string(cfg.Source),
	}
	if previous != nil {
		metadata["previous_version"] = previous.Version
	}
	actor := cfg.Actor
	target := strconv.FormatInt(cfg.Version, 10)
	if err := s.audit.AuditLog(ctx, actorType, &actor, auditdomain.ActionRateConfigUpdated, auditdomain.TargetRateConfig, &target, metadata); err != nil {
		s.log.Warn("audit rate config update failed", zap.Int64("version", cfg.Version), zap.Error(err))
	}
}

func decodeVersion(v domain.Version) (domain.RateConfig, error) {
	var cfg domain.RateConfig
	if err := json.Unmarshal(v.Payload, &cfg); err != nil {
		return domain.RateConfig{}, err
	}
	cfg.Version = v.Version
	cfg.Source = domain.Source(v.Source)
	if v.Actor != nil {
		cfg.Actor = *v.Actor
	}
	cfg.CreatedAt = v.CreatedAt.UTC()
	return cfg, nil
}
