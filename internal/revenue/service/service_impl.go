package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/settlekit/internal/account/domain"
	"github.com/smallbiznis/settlekit/internal/clock"
	"github.com/smallbiznis/settlekit/internal/config"
	"github.com/smallbiznis/settlekit/internal/observability/logger"
	"github.com/smallbiznis/settlekit/internal/observability/metrics"
	"github.com/smallbiznis/settlekit/internal/observability/tracing"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	"github.com/smallbiznis/settlekit/internal/revenue/domain"
	vatservice "github.com/smallbiznis/settlekit/internal/vat/service"
	"github.com/smallbiznis/settlekit/pkg/db/pagination"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultChunkDays = 31

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Cfg      config.Config
	Repo     domain.Repository
	Rates    rateconfigdomain.Store
	Accounts accountdomain.Repository
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	currency  string
	timeout   time.Duration
	chunkDays int
	repo      domain.Repository
	rates     rateconfigdomain.Store
	accounts  accountdomain.Repository
	metrics   *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	chunkDays := p.Cfg.Revenue.ChunkDays
	if chunkDays <= 0 {
		chunkDays = defaultChunkDays
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("revenue.service"),
		clock:     p.Clock,
		currency:  p.Cfg.Revenue.DefaultCurrency,
		timeout:   p.Cfg.Revenue.AggregationTimeout,
		chunkDays: chunkDays,
		repo:      p.Repo,
		rates:     p.Rates,
		accounts:  p.Accounts,
		metrics:   p.Metrics,
	}
}

func (s *Service) GetOverview(ctx context.Context, q domain.Query) (domain.Overview, error) {
	w, err := resolveWindow(q, s.clock.Now(), s.currency)
	if err != nil {
		return domain.Overview{}, err
	}

	ctx, span := tracing.Start(ctx, "revenue.overview", attribute.String("currency", w.currency))
	defer span.End()

	overview := domain.Overview{Currency: w.currency}
	cov, err := s.scan(ctx, w, s.dayChunk, func(ctx context.Context, from, to time.Time) error {
		totals, err := s.repo.DailyTotals(ctx, s.db, w.currency, from, to)
		if err != nil {
			return err
		}
		for _, d := range totals {
			if w.includes(d.SourceType) {
				overview.Add(d)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Overview{}, err
	}
	overview.Coverage = cov
	s.record(ctx, "overview", cov)
	return overview, nil
}

func (s *Service) GetTimeSeries(ctx context.Context, q domain.Query) (domain.TimeSeries, error) {
	w, err := resolveWindow(q, s.clock.Now(), s.currency)
	if err != nil {
		return domain.TimeSeries{}, err
	}
	g, err := granularityFor(q.Granularity, w)
	if err != nil {
		return domain.TimeSeries{}, err
	}

	ctx, span := tracing.Start(ctx, "revenue.time_series",
		attribute.String("currency", w.currency),
		attribute.String("granularity", string(g)),
	)
	defer span.End()

	points := emptyBuckets(w.start, w.end, g)
	index := make(map[int64]int, len(points))
	for i, p := range points {
		index[p.Start.Unix()] = i
	}

	next := s.dayChunk
	if g == domain.GranularityMonth {
		next = func(from time.Time) time.Time { return nextBucket(from, g) }
	}

	cov, err := s.scan(ctx, w, next, func(ctx context.Context, from, to time.Time) error {
		totals, err := s.repo.DailyTotals(ctx, s.db, w.currency, from, to)
		if err != nil {
			return err
		}
		for _, d := range totals {
			if !w.includes(d.SourceType) {
				continue
			}
			date, err := d.Date()
			if err != nil {
				return fmt.Errorf("revenue day %q: %w", d.Day, err)
			}
			if i, ok := index[bucketStart(date, g).Unix()]; ok {
				points[i].Add(d)
			}
		}
		return nil
	})
	if err != nil {
		return domain.TimeSeries{}, err
	}

	if cov.Partial {
		covered := points[:0]
		for _, p := range points {
			if p.Start.Before(cov.CoveredEnd) {
				covered = append(covered, p)
			}
		}
		points = covered
	}

	s.record(ctx, "time_series", cov)
	return domain.TimeSeries{
		Currency:    w.currency,
		Granularity: g,
		Points:      points,
		Coverage:    cov,
	}, nil
}

// GetMRR normalizes every recurring subscription to a monthly amount.
// Annual plans count as price/12 rounded half-up, per subscription.
func (s *Service) GetMRR(ctx context.Context, currency string) (domain.MRR, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(s.currency))
	}
	if len(currency) != 3 {
		return domain.MRR{}, errs.Validation("currency", domain.ErrInvalidCurrency)
	}

	subs, err := s.repo.RecurringSubscriptions(ctx, s.db, currency)
	if err != nil {
		return domain.MRR{}, err
	}

	mrr := domain.MRR{Currency: currency}
	for _, sub := range subs {
		amount, ok := monthlyAmount(sub)
		if !ok {
			s.log.Warn("subscription has unknown billing period",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("billing_period", string(sub.BillingPeriod)),
			)
			continue
		}
		if sub.Audience == domain.AudienceSchool {
			mrr.School += amount
		} else {
			mrr.Teacher += amount
		}
		mrr.Total += amount
		mrr.Subscriptions++
	}

	s.metrics.RecordRevenueQuery(ctx, "mrr", false)
	return mrr, nil
}

func monthlyAmount(sub domain.Subscription) (int64, bool) {
	switch sub.BillingPeriod {
	case domain.BillingMonthly:
		return sub.PriceAmount, true
	case domain.BillingAnnual:
		return vatservice.RoundHalfUp(decimal.NewFromInt(sub.PriceAmount).Div(decimal.NewFromInt(12))), true
	default:
		return 0, false
	}
}

// GetChurn is the share of subscriptions alive at the start of month that
// were cancelled before it ended, as a percentage with two decimals.
func (s *Service) GetChurn(ctx context.Context, month time.Time) (domain.Churn, error) {
	if month.IsZero() {
		month = s.clock.Now()
	}
	start := truncateToMonth(month.UTC())
	end := start.AddDate(0, 1, 0)

	active, err := s.repo.CountExistingAt(ctx, s.db, start)
	if err != nil {
		return domain.Churn{}, err
	}
	cancelled, err := s.repo.CountCancelled(ctx, s.db, start, end)
	if err != nil {
		return domain.Churn{}, err
	}

	churn := domain.Churn{
		Month:         start.Format("2006-01"),
		ActiveAtStart: active,
		Cancelled:     cancelled,
	}
	if active > 0 {
		churn.RatePercent = decimal.NewFromInt(cancelled * 100).
			Div(decimal.NewFromInt(active)).
			Round(2).
			InexactFloat64()
	}

	s.metrics.RecordRevenueQuery(ctx, "churn", false)
	return churn, nil
}

func (s *Service) GetBreakdown(ctx context.Context, q domain.BreakdownQuery) (domain.Breakdown, error) {
	switch q.EntityType {
	case domain.EntitySeller, domain.EntitySchool:
	default:
		return domain.Breakdown{}, errs.Validation("entity_type", domain.ErrInvalidEntityType)
	}
	w, err := resolveWindow(q.Query, s.clock.Now(), s.currency)
	if err != nil {
		return domain.Breakdown{}, err
	}

	ctx, span := tracing.Start(ctx, "revenue.breakdown",
		attribute.String("currency", w.currency),
		attribute.String("entity_type", string(q.EntityType)),
	)
	defer span.End()

	merged := make(map[snowflake.ID]*domain.EntityTotal)
	cov, err := s.scan(ctx, w, s.dayChunk, func(ctx context.Context, from, to time.Time) error {
		totals, err := s.repo.EntityTotals(ctx, s.db, q.EntityType, w.currency, from, to)
		if err != nil {
			return err
		}
		for _, t := range totals {
			acc, ok := merged[t.EntityID]
			if !ok {
				acc = &domain.EntityTotal{EntityID: t.EntityID}
				merged[t.EntityID] = acc
			}
			acc.Count += t.Count
			acc.Gross += t.Gross
			acc.Revenue += t.Revenue
			acc.Earnings += t.Earnings
		}
		return nil
	})
	if err != nil {
		return domain.Breakdown{}, err
	}

	rows := make([]domain.BreakdownRow, 0, len(merged))
	for _, t := range merged {
		rows = append(rows, domain.BreakdownRow{
			EntityID: t.EntityID,
			Count:    t.Count,
			Gross:    t.Gross,
			Revenue:  t.Revenue,
			Earnings: t.Earnings,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		if rows[i].Gross != rows[j].Gross {
			return rows[i].Gross > rows[j].Gross
		}
		return rows[i].EntityID < rows[j].EntityID
	})

	page, info := pagination.Slice(rows, q.Page)
	if err := s.decorate(ctx, page, q.EntityType, w.currency); err != nil {
		return domain.Breakdown{}, err
	}

	s.record(ctx, "breakdown", cov)
	return domain.Breakdown{
		Currency:   w.currency,
		EntityType: q.EntityType,
		Rows:       page,
		PageInfo:   info,
		Coverage:   cov,
	}, nil
}

// decorate fills names and, for sellers, the minimum payout flag.
func (s *Service) decorate(ctx context.Context, rows []domain.BreakdownRow, entityType domain.EntityType, currency string) error {
	if len(rows) == 0 {
		return nil
	}

	ids := make([]snowflake.ID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.EntityID)
	}
	accounts, err := s.accounts.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	var minimum int64
	if entityType == domain.EntitySeller {
		cfg, err := s.rates.Current()
		if err != nil {
			s.log.Warn("minimum payout unavailable", zap.Error(err))
		} else {
			minimum = cfg.MinimumPayoutFor(currency)
		}
	}

	for i := range rows {
		if acc, ok := accounts[rows[i].EntityID]; ok {
			rows[i].Name = acc.Name
		}
		if minimum > 0 {
			rows[i].BelowMinimumPayout = rows[i].Earnings < minimum
		}
	}
	return nil
}

// scan walks the window in chunks under the aggregation timeout. Once the
// deadline passes the coverage stops at the last finished chunk; a cancelled
// caller context is still an error.
func (s *Service) scan(
	ctx context.Context,
	w window,
	next func(time.Time) time.Time,
	fn func(ctx context.Context, from, to time.Time) error,
) (domain.Coverage, error) {
	cov := domain.Coverage{Start: w.start, End: w.end, CoveredEnd: w.start}

	scanCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for from := w.start; from.Before(w.end); {
		to := next(from)
		if to.After(w.end) {
			to = w.end
		}

		err := scanCtx.Err()
		if err == nil {
			err = fn(scanCtx, from, to)
		}
		if err != nil {
			if ctx.Err() != nil {
				return cov, ctx.Err()
			}
			if scanCtx.Err() != nil {
				cov.Partial = true
				return cov, nil
			}
			return cov, err
		}

		cov.CoveredEnd = to
		from = to
	}
	return cov, nil
}

func (s *Service) dayChunk(from time.Time) time.Time {
	return truncateToDay(from).AddDate(0, 0, s.chunkDays)
}

func (s *Service) record(ctx context.Context, query string, cov domain.Coverage) {
	s.metrics.RecordRevenueQuery(ctx, query, cov.Partial)
	if cov.Partial {
		logger.WithContext(ctx, s.log).Warn("revenue query hit aggregation deadline",
			zap.String("query", query),
			zap.Time("start", cov.Start),
			zap.Time("end", cov.End),
			zap.Time("covered_end", cov.CoveredEnd),
		)
	}
}

var _ domain.Service = (*Service)(nil)
