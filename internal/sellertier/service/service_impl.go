package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/settlekit/internal/account/domain"
	auditdomain "github.com/smallbiznis/settlekit/internal/audit/domain"
	"github.com/smallbiznis/settlekit/internal/cache"
	"github.com/smallbiznis/settlekit/internal/clock"
	"github.com/smallbiznis/settlekit/internal/observability/logger"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	"github.com/smallbiznis/settlekit/internal/sellertier/domain"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize     = 200
	defaultHistoryLimit = 50
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Accounts accountdomain.Repository
	Rates    rateconfigdomain.Store
	Cache    cache.TierRateCache `optional:"true"`
	Audit    auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	accounts accountdomain.Repository
	rates    rateconfigdomain.Store
	cache    cache.TierRateCache
	audit    auditdomain.Service
	pageSize int
}

func NewService(p Params) domain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("sellertier.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		accounts: p.Accounts,
		rates:    p.Rates,
		cache:    p.Cache,
		audit:    p.Audit,
		pageSize: defaultPageSize,
	}
}

func (s *Service) CurrentRate(ctx context.Context, sellerID snowflake.ID) (domain.TierRate, error) {
	if sellerID == 0 {
		return domain.TierRate{}, errs.Validation("seller_id", domain.ErrInvalidSeller)
	}
	if s.cache != nil {
		if rate, ok := s.cache.GetTierRate(sellerID); ok {
			return rate, nil
		}
	}

	state, err := s.ensureState(ctx, s.db, sellerID)
	if err != nil {
		return domain.TierRate{}, err
	}

	rate := rateFromState(state)
	if s.cache != nil {
		s.cache.SetTierRate(rate)
	}
	return rate, nil
}

func (s *Service) GetState(ctx context.Context, sellerID snowflake.ID) (domain.State, error) {
	if sellerID == 0 {
		return domain.State{}, errs.Validation("seller_id", domain.ErrInvalidSeller)
	}
	state, err := s.ensureState(ctx, s.db, sellerID)
	if err != nil {
		return domain.State{}, err
	}
	history, err := s.repo.ListChanges(ctx, s.db, sellerID, defaultHistoryLimit)
	if err != nil {
		return domain.State{}, err
	}
	return domain.State{SellerTierState: *state, TierHistory: history}, nil
}

func (s *Service) RecomputeSeller(ctx context.Context, sellerID snowflake.ID) (domain.RecomputeOutcome, error) {
	if sellerID == 0 {
		return "", errs.Validation("seller_id", domain.ErrInvalidSeller)
	}
	cfg, err := s.rates.Current()
	if err != nil {
		return "", err
	}
	return s.recompute(ctx, cfg, sellerID)
}

// RecomputeAll walks every seller in id order against one config snapshot.
// A failing seller is logged and counted; the batch carries on.
func (s *Service) RecomputeAll(ctx context.Context) (domain.RecomputeReport, error) {
	var report domain.RecomputeReport

	cfg, err := s.rates.Current()
	if err != nil {
		return report, err
	}

	var after snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ids, err := s.accounts.ListIDs(ctx, accountdomain.KindSeller, after, s.pageSize)
		if err != nil {
			return report, fmt.Errorf("list sellers: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		for _, sellerID := range ids {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			outcome, err := s.recompute(ctx, cfg, sellerID)
			if err != nil {
				report.Errors++
				report.Failures = append(report.Failures, domain.SellerError{
					SellerID: sellerID,
					Err:      err,
					Message:  err.Error(),
				})
				logger.WithSeller(s.log, sellerID.String()).Warn("seller tier recompute failed", zap.Error(err))
				continue
			}
			report.Record(outcome)
		}

		after = ids[len(ids)-1]
		if len(ids) < s.pageSize {
			break
		}
	}

	s.log.Info("seller tiers recomputed",
		zap.Int("recalculated", report.Recalculated),
		zap.Int("upgraded", report.Upgraded),
		zap.Int("downgraded", report.Downgraded),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("errors", report.Errors),
		zap.Int64("rate_config_version", cfg.Version),
	)
	return report, nil
}

func (s *Service) recompute(ctx context.Context, cfg rateconfigdomain.RateConfig, sellerID snowflake.ID) (domain.RecomputeOutcome, error) {
	now := s.clock.Now().UTC()
	windowStart := now.AddDate(-1, 0, 0)

	var (
		outcome domain.RecomputeOutcome
		change  *domain.TierChange
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := s.repo.FindStateForUpdate(ctx, tx, sellerID)
		if err != nil {
			return err
		}
		if state == nil {
			if state, err = s.createState(ctx, tx, cfg, sellerID); err != nil {
				return err
			}
		}

		rolling, err := s.repo.RollingSales(ctx, tx, sellerID, cfg.TierCurrency, windowStart, now)
		if err != nil {
			return fmt.Errorf("rolling sales: %w", err)
		}
		lifetime, err := s.repo.LifetimeSales(ctx, tx, sellerID, cfg.TierCurrency)
		if err != nil {
			return fmt.Errorf("lifetime sales: %w", err)
		}

		target := cfg.ResolveTier(rolling.NetSales)
		outcome = compareTiers(cfg, state.CurrentTier, target.Name)

		if outcome != domain.OutcomeUnchanged {
			change = &domain.TierChange{
				ID:                  s.genID.Generate(),
				SellerID:            sellerID,
				FromTier:            state.CurrentTier,
				ToTier:              target.Name,
				FromRoyaltyRate:     state.CurrentRoyaltyRate,
				ToRoyaltyRate:       target.RoyaltyRate,
				RollingNetSales12mo: rolling.NetSales,
				RateConfigVersion:   cfg.Version,
				ChangedAt:           now,
			}
			if err := s.repo.InsertChange(ctx, tx, change); err != nil {
				return fmt.Errorf("insert tier change: %w", err)
			}
		}

		state.CurrentTier = target.Name
		state.CurrentRoyaltyRate = target.RoyaltyRate
		state.RollingNetSales12mo = rolling.NetSales
		state.RollingSaleCount12mo = rolling.SaleCount
		state.LifetimeNetSales = lifetime.NetSales
		state.LifetimeEarnings = lifetime.Earnings
		state.RateConfigVersion = cfg.Version
		state.LastRecomputedAt = &now
		state.UpdatedAt = now
		return s.repo.UpdateState(ctx, tx, state)
	})
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		s.cache.Invalidate(sellerID)
	}
	if change != nil {
		s.recordChange(ctx, change, outcome)
	}
	return outcome, nil
}

func (s *Service) recordChange(ctx context.Context, change *domain.TierChange, outcome domain.RecomputeOutcome) {
	log := logger.WithSeller(s.log, change.SellerID.String())
	log.Info("seller tier changed",
		zap.String("from_tier", change.FromTier),
		zap.String("to_tier", change.ToTier),
		zap.String("outcome", string(outcome)),
		zap.Int64("rolling_net_sales_12mo", change.RollingNetSales12mo),
	)
	if s.audit == nil {
		return
	}
	targetID := change.SellerID.String()
	if err := s.audit.AuditLog(ctx, string(auditdomain.ActorTypeScheduler), nil, auditdomain.ActionSellerTierChanged, auditdomain.TargetSeller, &targetID, map[string]any{
		"from_tier":              change.FromTier,
		"to_tier":                change.ToTier,
		"outcome":                string(outcome),
		"rolling_net_sales_12mo": change.RollingNetSales12mo,
		"rate_config_version":    strconv.FormatInt(change.RateConfigVersion, 10),
	}); err != nil {
		log.Warn("audit tier change failed", zap.Error(err))
	}
}

// ensureState reads the seller's state, creating it at the lowest tier on first use.
func (s *Service) ensureState(ctx context.Context, db *gorm.DB, sellerID snowflake.ID) (*domain.SellerTierState, error) {
	state, err := s.repo.FindState(ctx, db, sellerID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	cfg, err := s.rates.Current()
	if err != nil {
		return nil, err
	}
	return s.createState(ctx, db, cfg, sellerID)
}

func (s *Service) createState(ctx context.Context, db *gorm.DB, cfg rateconfigdomain.RateConfig, sellerID snowflake.ID) (*domain.SellerTierState, error) {
	exists, err := s.accounts.Exists(ctx, sellerID, accountdomain.KindSeller)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrSellerNotFound
	}
	if len(cfg.Tiers) == 0 {
		return nil, errs.Configuration("rate config has no tiers", rateconfigdomain.ErrNoTiers)
	}

	now := s.clock.Now().UTC()
	lowest := cfg.LowestTier()
	created, err := s.repo.InsertStateIfAbsent(ctx, db, &domain.SellerTierState{
		SellerID:           sellerID,
		CurrentTier:        lowest.Name,
		CurrentRoyaltyRate: lowest.RoyaltyRate,
		RateConfigVersion:  cfg.Version,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		return nil, fmt.Errorf("create seller tier state: %w", err)
	}
	if created {
		logger.WithSeller(s.log, sellerID.String()).Debug("seller tier state created", zap.String("tier", lowest.Name))
	}

	// Re-read so a concurrent creator's row wins.
	state, err := s.repo.FindState(ctx, db, sellerID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, errors.New("seller tier state missing after insert")
	}
	return state, nil
}

func compareTiers(cfg rateconfigdomain.RateConfig, from, to string) domain.RecomputeOutcome {
	if from == to {
		return domain.OutcomeUnchanged
	}
	// A tier dropped from the config ranks below every known tier.
	if cfg.TierRank(to) > cfg.TierRank(from) {
		return domain.OutcomeUpgraded
	}
	return domain.OutcomeDowngraded
}

func rateFromState(state *domain.SellerTierState) domain.TierRate {
	return domain.TierRate{
		SellerID:          state.SellerID,
		Tier:              state.CurrentTier,
		RoyaltyRate:       state.CurrentRoyaltyRate,
		RateConfigVersion: state.RateConfigVersion,
	}
}

var _ domain.Service = (*Service)(nil)

