package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/smallbiznis/settlekit/internal/account/domain"
	accountrepo "github.com/smallbiznis/settlekit/internal/account/repository"
	"github.com/smallbiznis/settlekit/internal/clock"
	"github.com/smallbiznis/settlekit/internal/config"
	"github.com/smallbiznis/settlekit/internal/rateconfig/ratetest"
	"github.com/smallbiznis/settlekit/internal/revenue/domain"
	"github.com/smallbiznis/settlekit/internal/revenue/repository"
	"github.com/smallbiznis/settlekit/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const settlementsDDL = `CREATE TABLE settlements (
	id INTEGER PRIMARY KEY,
	source_type TEXT NOT NULL,
	audience TEXT,
	status TEXT NOT NULL,
	currency TEXT NOT NULL,
	gross_amount INTEGER NOT NULL,
	platform_commission INTEGER NOT NULL,
	seller_earnings INTEGER NOT NULL,
	seller_id INTEGER,
	school_id INTEGER,
	occurred_at DATETIME NOT NULL
)`

type fixture struct {
	svc    *Service
	db     *gorm.DB
	nextID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(settlementsDDL).Error)
	require.NoError(t, db.AutoMigrate(&domain.Subscription{}, &accountdomain.Account{}))

	svc := newService(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		Clock: clock.NewFakeClock(now),
		Cfg: config.Config{Revenue: config.RevenueConfig{
			DefaultCurrency:    "GBP",
			AggregationTimeout: time.Minute,
			ChunkDays:          7,
		}},
		Repo:     repository.Provide(),
		Rates:    ratetest.NewStore(ratetest.Default()),
		Accounts: accountrepo.NewRepository(db),
	})
	return &fixture{svc: svc, db: db}
}

type row struct {
	source     string
	audience   string
	status     string
	currency   string
	gross      int64
	commission int64
	earnings   int64
	sellerID   *int64
	schoolID   *int64
	at         time.Time
}

func (f *fixture) insert(t *testing.T, r row) {
	t.Helper()
	f.nextID++
	if r.status == "" {
		r.status = "completed"
	}
	if r.currency == "" {
		r.currency = "GBP"
	}
	var audience any
	if r.audience != "" {
		audience = r.audience
	}
	require.NoError(t, f.db.Exec(
		`INSERT INTO settlements (id, source_type, audience, status, currency, gross_amount, platform_commission, seller_earnings, seller_id, school_id, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.nextID, r.source, audience, r.status, r.currency, r.gross, r.commission, r.earnings, r.sellerID, r.schoolID, r.at,
	).Error)
}

func id(v int64) *int64 { return &v }

func (f *fixture) seedStreams(t *testing.T) {
	f.insert(t, row{source: "resource_sale", gross: 1000, commission: 333, earnings: 500, sellerID: id(1), at: day(2025, 6, 2).Add(9 * time.Hour)})
	f.insert(t, row{source: "resource_sale", gross: 2000, commission: 500, earnings: 1000, sellerID: id(2), at: day(2025, 6, 15)})
	f.insert(t, row{source: "subscription", audience: "teacher", gross: 600, commission: 500, at: day(2025, 6, 15).Add(23 * time.Hour)})
	f.insert(t, row{source: "subscription", audience: "school", gross: 12000, commission: 10000, schoolID: id(9), at: day(2025, 6, 20)})
	f.insert(t, row{source: "ad_payment", gross: 3600, commission: 3000, schoolID: id(9), at: day(2025, 6, 30).Add(23*time.Hour + 59*time.Minute)})
	// Excluded: refunded, other currency, outside the window.
	f.insert(t, row{source: "resource_sale", status: "refunded", gross: 1000, commission: 333, earnings: 500, sellerID: id(1), at: day(2025, 6, 3)})
	f.insert(t, row{source: "resource_sale", currency: "EUR", gross: 1000, commission: 300, earnings: 600, sellerID: id(1), at: day(2025, 6, 3)})
	f.insert(t, row{source: "ad_payment", gross: 3600, commission: 3000, at: day(2025, 7, 1)})
}

func TestOverviewSplitsStreams(t *testing.T) {
	f := newFixture(t)
	f.seedStreams(t)

	overview, err := f.svc.GetOverview(context.Background(), domain.Query{Preset: domain.PresetLastMonth})
	require.NoError(t, err)

	assert.Equal(t, "GBP", overview.Currency)
	assert.Equal(t, domain.Total{Amount: 833, Count: 2}, overview.ResourceSales)
	assert.Equal(t, domain.Total{Amount: 500, Count: 1}, overview.Subscriptions.Teacher)
	assert.Equal(t, domain.Total{Amount: 10000, Count: 1}, overview.Subscriptions.School)
	assert.Equal(t, domain.Total{Amount: 10500, Count: 2}, overview.Subscriptions.Total)
	assert.Equal(t, domain.Total{Amount: 3000, Count: 1}, overview.AdPayments)
	assert.Equal(t, domain.Total{Amount: 14333, Count: 5}, overview.Total)
	assert.False(t, overview.Partial)
	assert.Equal(t, day(2025, 7, 1), overview.CoveredEnd)
}

func TestOverviewStreamFilter(t *testing.T) {
	f := newFixture(t)
	f.seedStreams(t)

	overview, err := f.svc.GetOverview(context.Background(), domain.Query{Preset: domain.PresetLastMonth, Stream: domain.StreamSubscription})
	require.NoError(t, err)
	assert.Equal(t, domain.Total{Amount: 10500, Count: 2}, overview.Total)
	assert.Zero(t, overview.ResourceSales.Amount)
}

func TestTimeSeriesSumsToOverview(t *testing.T) {
	f := newFixture(t)
	f.seedStreams(t)
	ctx := context.Background()

	for _, q := range []domain.Query{
		{Preset: domain.PresetLastMonth},
		{Preset: domain.PresetLastMonth, Granularity: domain.GranularityMonth},
		{Preset: domain.PresetThisYear},
		{Preset: domain.PresetLast90Days, Stream: domain.StreamResourceSale},
	} {
		overview, err := f.svc.GetOverview(ctx, q)
		require.NoError(t, err)
		series, err := f.svc.GetTimeSeries(ctx, q)
		require.NoError(t, err)

		var sum int64
		for _, p := range series.Points {
			sum += p.Total
			assert.Equal(t, p.ResourceSales+p.SubscriptionTeacher+p.SubscriptionSchool+p.AdPayments, p.Total)
		}
		assert.Equal(t, overview.Total.Amount, sum, "query %+v", q)
	}
}

func TestDailyTotalsGroupsInQuery(t *testing.T) {
	f := newFixture(t)
	f.seedStreams(t)
	f.insert(t, row{source: "resource_sale", gross: 400, commission: 100, earnings: 200, sellerID: id(3), at: day(2025, 6, 2).Add(18 * time.Hour)})
	// 00:30 in UTC+2 is still the 2nd in UTC.
	f.insert(t, row{source: "resource_sale", gross: 400, commission: 100, earnings: 200, sellerID: id(3), at: day(2025, 6, 3).Add(-90 * time.Minute).In(time.FixedZone("CEST", 2*60*60))})

	totals, err := repository.Provide().DailyTotals(context.Background(), f.db, "GBP", day(2025, 6, 1), day(2025, 7, 1))
	require.NoError(t, err)
	require.Len(t, totals, 5)

	assert.Equal(t, domain.DailyTotal{Day: "2025-06-02", SourceType: "resource_sale", Amount: 533, Count: 3}, totals[0])
	date, err := totals[0].Date()
	require.NoError(t, err)
	assert.Equal(t, day(2025, 6, 2), date)

	var count int64
	for _, d := range totals {
		count += d.Count
	}
	assert.Equal(t, int64(7), count)
}

func TestTimeSeriesZeroFillsDays(t *testing.T) {
	f := newFixture(t)
	f.seedStreams(t)

	series, err := f.svc.GetTimeSeries(context.Background(), domain.Query{Preset: domain.PresetLastMonth})
	require.NoError(t, err)

	assert.Equal(t, domain.GranularityDay, series.Granularity)
	require.Len(t, series.Points, 30)
	assert.Equal(t, "2025-06-01", series.Points[0].Period)
	assert.Equal(t, int64(0), series.Points[0].Total)
	assert.Equal(t, int64(333), series.Points[1].ResourceSales)
	// 23:00 on the 15th stays on the 15th in UTC.
	assert.Equal(t, int64(1000), series.Points[14].Total)
	assert.Equal(t, "2025-06-30", series.Points[29].Period)
	assert.Equal(t, int64(3000), series.Points[29].AdPayments)
}

func TestTimeSeriesUsesMonthsForLongRanges(t *testing.T) {
	f := newFixture(t)
	f.seedStreams(t)

	series, err := f.svc.GetTimeSeries(context.Background(), domain.Query{Preset: domain.PresetLast12Months})
	require.NoError(t, err)
	assert.Equal(t, domain.GranularityMonth, series.Granularity)
	require.Len(t, series.Points, 12)
	assert.Equal(t, "2024-08", series.Points[0].Period)
	assert.Equal(t, "2025-07", series.Points[11].Period)
	assert.Equal(t, int64(14333), series.Points[10].Total)
	assert.Equal(t, int64(3000), series.Points[11].Total)
}

func TestMRR(t *testing.T) {
	f := newFixture(t)
	created := day(2025, 1, 1)
	subs := []domain.Subscription{
		{ID: 1, AccountID: 10, Audience: "teacher", Status: domain.SubscriptionActive, BillingPeriod: domain.BillingMonthly, PriceAmount: 799, Currency: "GBP"},
		{ID: 2, AccountID: 11, Audience: "school", Status: domain.SubscriptionTrialing, BillingPeriod: domain.BillingAnnual, PriceAmount: 1000, Currency: "GBP"},
		{ID: 3, AccountID: 12, Audience: "school", Status: domain.SubscriptionActive, BillingPeriod: domain.BillingAnnual, PriceAmount: 1002, Currency: "GBP"},
		{ID: 4, AccountID: 13, Audience: "teacher", Status: domain.SubscriptionActive, BillingPeriod: domain.BillingMonthly, PriceAmount: 500, Currency: "GBP", CancelAtPeriodEnd: true},
		{ID: 5, AccountID: 14, Audience: "teacher", Status: domain.SubscriptionCancelled, BillingPeriod: domain.BillingMonthly, PriceAmount: 500, Currency: "GBP"},
		{ID: 6, AccountID: 15, Audience: "teacher", Status: domain.SubscriptionActive, BillingPeriod: domain.BillingMonthly, PriceAmount: 900, Currency: "EUR"},
	}
	for i := range subs {
		subs[i].StartedAt = created
		subs[i].CreatedAt = created
		subs[i].UpdatedAt = created
	}
	require.NoError(t, f.db.Create(&subs).Error)

	mrr, err := f.svc.GetMRR(context.Background(), "gbp")
	require.NoError(t, err)
	assert.Equal(t, int64(799), mrr.Teacher)
	// 1000/12 = 83.33 -> 83, 1002/12 = 83.5 -> 84
	assert.Equal(t, int64(167), mrr.School)
	assert.Equal(t, int64(966), mrr.Total)
	assert.Equal(t, int64(3), mrr.Subscriptions)
}

func TestMonthlyAmount(t *testing.T) {
	p, ok := monthlyAmount(domain.Subscription{BillingPeriod: domain.BillingMonthly, PriceAmount: 1234})
	require.True(t, ok)
	assert.Equal(t, int64(1234), p)

	a, ok := monthlyAmount(domain.Subscription{BillingPeriod: domain.BillingAnnual, PriceAmount: 9999})
	require.True(t, ok)
	assert.Equal(t, int64(833), a)

	_, ok = monthlyAmount(domain.Subscription{BillingPeriod: "weekly", PriceAmount: 100})
	assert.False(t, ok)
}

func TestChurn(t *testing.T) {
	f := newFixture(t)

	churn, err := f.svc.GetChurn(context.Background(), day(2025, 6, 10))
	require.NoError(t, err)
	assert.Equal(t, "2025-06", churn.Month)
	assert.Zero(t, churn.ActiveAtStart)
	assert.Zero(t, churn.RatePercent)

	cancelledInJune := day(2025, 6, 12)
	cancelledInMay := day(2025, 5, 20)
	subs := []domain.Subscription{
		{ID: 1, StartedAt: day(2025, 1, 1)},
		{ID: 2, StartedAt: day(2025, 2, 1)},
		{ID: 3, StartedAt: day(2025, 3, 1), CancelledAt: &cancelledInJune},
		{ID: 4, StartedAt: day(2025, 3, 1), CancelledAt: &cancelledInMay},
		// Started during June: not part of the base.
		{ID: 5, StartedAt: day(2025, 6, 5), CancelledAt: &cancelledInJune},
	}
	for i := range subs {
		subs[i].AccountID = snowflake.ID(100 + i)
		subs[i].Audience = "teacher"
		subs[i].Status = domain.SubscriptionActive
		subs[i].BillingPeriod = domain.BillingMonthly
		subs[i].Currency = "GBP"
		subs[i].CreatedAt = subs[i].StartedAt
		subs[i].UpdatedAt = subs[i].StartedAt
	}
	require.NoError(t, f.db.Create(&subs).Error)

	churn, err = f.svc.GetChurn(context.Background(), day(2025, 6, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), churn.ActiveAtStart)
	assert.Equal(t, int64(1), churn.Cancelled)
	assert.Equal(t, 33.33, churn.RatePercent)
}

func TestBreakdownSellers(t *testing.T) {
	f := newFixture(t)
	f.seedStreams(t)
	f.insert(t, row{source: "resource_sale", gross: 5000, commission: 1000, earnings: 3000, sellerID: id(3), at: day(2025, 6, 25)})
	require.NoError(t, f.db.Create(&accountdomain.Account{ID: 2, Kind: accountdomain.KindSeller, Name: "Phonics Lab", CreatedAt: now}).Error)

	ctx := context.Background()
	out, err := f.svc.GetBreakdown(ctx, domain.BreakdownQuery{
		Query:      domain.Query{Preset: domain.PresetLastMonth},
		EntityType: domain.EntitySeller,
		Page:       pagination.Page{Page: 1, PageSize: 2},
	})
	require.NoError(t, err)

	require.Len(t, out.Rows, 2)
	assert.Equal(t, snowflake.ID(3), out.Rows[0].EntityID)
	assert.False(t, out.Rows[0].BelowMinimumPayout)
	assert.Equal(t, snowflake.ID(2), out.Rows[1].EntityID)
	assert.Equal(t, "Phonics Lab", out.Rows[1].Name)
	assert.Equal(t, int64(1000), out.Rows[1].Earnings)
	assert.False(t, out.Rows[1].BelowMinimumPayout)
	assert.Equal(t, int64(3), out.PageInfo.TotalCount)
	assert.True(t, out.PageInfo.HasMore)

	out, err = f.svc.GetBreakdown(ctx, domain.BreakdownQuery{
		Query:      domain.Query{Preset: domain.PresetLastMonth},
		EntityType: domain.EntitySeller,
		Page:       pagination.Page{Page: 2, PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, snowflake.ID(1), out.Rows[0].EntityID)
	assert.Equal(t, int64(500), out.Rows[0].Earnings)
	assert.True(t, out.Rows[0].BelowMinimumPayout)
}

func TestBreakdownSchools(t *testing.T) {
	f := newFixture(t)
	f.seedStreams(t)

	out, err := f.svc.GetBreakdown(context.Background(), domain.BreakdownQuery{
		Query:      domain.Query{Preset: domain.PresetLastMonth},
		EntityType: domain.EntitySchool,
	})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, snowflake.ID(9), out.Rows[0].EntityID)
	assert.Equal(t, int64(13000), out.Rows[0].Revenue)
	assert.Equal(t, int64(2), out.Rows[0].Count)
	assert.False(t, out.Rows[0].BelowMinimumPayout)

	_, err = f.svc.GetBreakdown(context.Background(), domain.BreakdownQuery{EntityType: "buyer"})
	assert.ErrorIs(t, err, domain.ErrInvalidEntityType)
}

func TestScanStopsAtDeadline(t *testing.T) {
	f := newFixture(t)
	f.svc.timeout = 50 * time.Millisecond
	w := window{start: day(2025, 6, 1), end: day(2025, 7, 1), currency: "GBP"}

	calls := 0
	cov, err := f.svc.scan(context.Background(), w, f.svc.dayChunk, func(ctx context.Context, from, to time.Time) error {
		calls++
		if calls == 3 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, cov.Partial)
	assert.Equal(t, day(2025, 6, 15), cov.CoveredEnd)
	assert.Equal(t, day(2025, 7, 1), cov.End)
}

func TestScanReturnsCallerCancellation(t *testing.T) {
	f := newFixture(t)
	w := window{start: day(2025, 6, 1), end: day(2025, 7, 1), currency: "GBP"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.scan(ctx, w, f.svc.dayChunk, func(context.Context, time.Time, time.Time) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanPropagatesQueryErrors(t *testing.T) {
	f := newFixture(t)
	w := window{start: day(2025, 6, 1), end: day(2025, 7, 1), currency: "GBP"}
	boom := errors.New("boom")

	_, err := f.svc.scan(context.Background(), w, f.svc.dayChunk, func(context.Context, time.Time, time.Time) error { return boom })
	assert.ErrorIs(t, err, boom)
}

// stallingRepo blocks every entry read from stallFrom onwards until the
// aggregation deadline passes.
type stallingRepo struct {
	domain.Repository
	stallFrom time.Time
}

func (r stallingRepo) DailyTotals(ctx context.Context, db *gorm.DB, currency string, from, to time.Time) ([]domain.DailyTotal, error) {
	if !from.Before(r.stallFrom) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return r.Repository.DailyTotals(ctx, db, currency, from, to)
}

func TestTimeSeriesNarrowsOnDeadline(t *testing.T) {
	f := newFixture(t)
	f.seedStreams(t)
	f.svc.timeout = 50 * time.Millisecond
	f.svc.repo = stallingRepo{Repository: f.svc.repo, stallFrom: day(2025, 6, 15)}

	series, err := f.svc.GetTimeSeries(context.Background(), domain.Query{Preset: domain.PresetLastMonth})
	require.NoError(t, err)
	assert.True(t, series.Partial)
	assert.Equal(t, day(2025, 6, 15), series.CoveredEnd)
	require.Len(t, series.Points, 14)
	assert.Equal(t, "2025-06-14", series.Points[13].Period)

	var sum int64
	for _, p := range series.Points {
		sum += p.Total
	}
	assert.Equal(t, int64(333), sum)
}
