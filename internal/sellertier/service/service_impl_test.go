package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/settlekit/internal/account/domain"
	accountrepo "github.com/smallbiznis/settlekit/internal/account/repository"
	"github.com/smallbiznis/settlekit/internal/cache"
	"github.com/smallbiznis/settlekit/internal/clock"
	"github.com/smallbiznis/settlekit/internal/rateconfig/ratetest"
	"github.com/smallbiznis/settlekit/internal/sellertier/domain"
	"github.com/smallbiznis/settlekit/internal/sellertier/repository"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const settlementsDDL = `CREATE TABLE settlements (
	id INTEGER PRIMARY KEY,
	seller_id INTEGER,
	source_type TEXT NOT NULL,
	status TEXT NOT NULL,
	currency TEXT NOT NULL,
	gross_amount INTEGER NOT NULL,
	vat_amount INTEGER NOT NULL,
	seller_earnings INTEGER NOT NULL,
	occurred_at DATETIME NOT NULL
)`

type fixture struct {
	svc   *Service
	db    *gorm.DB
	clock *clock.FakeClock
	rates *ratetest.Store
	node  *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.SellerTierState{}, &domain.TierChange{}, &accountdomain.Account{}))
	require.NoError(t, db.Exec(settlementsDDL).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	rates := ratetest.NewStore(ratetest.Default())

	svc := newService(Params{
		DB:       db,
		Log:      zaptest.NewLogger(t),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		Accounts: accountrepo.NewRepository(db),
		Rates:    rates,
		Cache:    cache.NewTierRateCache(),
	})
	return &fixture{svc: svc, db: db, clock: clk, rates: rates, node: node}
}

func (f *fixture) seller(t *testing.T) snowflake.ID {
	t.Helper()
	acc := accountdomain.Account{
		ID:        f.node.Generate(),
		Kind:      accountdomain.KindSeller,
		Name:      "Seller",
		CreatedAt: f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&acc).Error)
	return acc.ID
}

func (f *fixture) sale(t *testing.T, sellerID snowflake.ID, gross, vat int64, status string, at time.Time) {
	t.Helper()
	f.saleIn(t, sellerID, "GBP", gross, vat, status, at)
}

func (f *fixture) saleIn(t *testing.T, sellerID snowflake.ID, currency string, gross, vat int64, status string, at time.Time) {
	t.Helper()
	require.NoError(t, f.db.Exec(
		`INSERT INTO settlements (id, seller_id, source_type, status, currency, gross_amount, vat_amount, seller_earnings, occurred_at)
		 VALUES (?, ?, 'resource_sale', ?, ?, ?, ?, ?, ?)`,
		f.node.Generate(), sellerID, status, currency, gross, vat, (gross-vat)/2, at,
	).Error)
}

func TestCurrentRateCreatesLowestTierLazily(t *testing.T) {
	f := newFixture(t)
	sellerID := f.seller(t)

	rate, err := f.svc.CurrentRate(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, "bronze", rate.Tier)
	assert.True(t, rate.RoyaltyRate.Equal(decimal.RequireFromString("0.6")))
	assert.Equal(t, int64(1), rate.RateConfigVersion)

	var count int64
	require.NoError(t, f.db.Model(&domain.SellerTierState{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Second read is served without inserting again.
	_, err = f.svc.CurrentRate(context.Background(), sellerID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&domain.SellerTierState{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCurrentRateRejectsUnknownSeller(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CurrentRate(context.Background(), f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrSellerNotFound)

	_, err = f.svc.CurrentRate(context.Background(), 0)
	assert.True(t, errs.IsValidation(err))
}

func TestCurrentRateNeverRecomputes(t *testing.T) {
	f := newFixture(t)
	sellerID := f.seller(t)
	_, err := f.svc.CurrentRate(context.Background(), sellerID)
	require.NoError(t, err)

	f.sale(t, sellerID, 500000, 0, "completed", f.clock.Now().Add(-time.Hour))

	rate, err := f.svc.CurrentRate(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, "bronze", rate.Tier)
}

func TestRecomputeSilverThresholdIsInclusive(t *testing.T) {
	f := newFixture(t)
	atThreshold := f.seller(t)
	belowThreshold := f.seller(t)
	now := f.clock.Now()

	// 1200.00 gross with 200.00 VAT nets exactly 1000.00.
	f.sale(t, atThreshold, 120000, 20000, "completed", now.Add(-24*time.Hour))
	f.sale(t, belowThreshold, 119999, 20000, "completed", now.Add(-24*time.Hour))

	outcome, err := f.svc.RecomputeSeller(context.Background(), atThreshold)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpgraded, outcome)

	outcome, err = f.svc.RecomputeSeller(context.Background(), belowThreshold)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnchanged, outcome)

	rate, err := f.svc.CurrentRate(context.Background(), atThreshold)
	require.NoError(t, err)
	assert.Equal(t, "silver", rate.Tier)
	assert.True(t, rate.RoyaltyRate.Equal(decimal.RequireFromString("0.7")))

	state, err := f.svc.GetState(context.Background(), atThreshold)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), state.RollingNetSales12mo)
	assert.Equal(t, int64(1), state.RollingSaleCount12mo)
	require.Len(t, state.TierHistory, 1)
	assert.Equal(t, "bronze", state.TierHistory[0].FromTier)
	assert.Equal(t, "silver", state.TierHistory[0].ToTier)
	require.NotNil(t, state.LastRecomputedAt)
}

func TestRecomputeCountsOnlyTierCurrency(t *testing.T) {
	f := newFixture(t)
	sellerID := f.seller(t)
	now := f.clock.Now()

	// Together 1000.00 in raw minor units, but neither currency reaches silver alone.
	f.saleIn(t, sellerID, "GBP", 60000, 0, "completed", now.Add(-time.Hour))
	f.saleIn(t, sellerID, "USD", 40000, 0, "completed", now.Add(-time.Hour))

	outcome, err := f.svc.RecomputeSeller(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnchanged, outcome)

	state, err := f.svc.GetState(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, "bronze", state.CurrentTier)
	assert.Equal(t, int64(60000), state.RollingNetSales12mo)
	assert.Equal(t, int64(1), state.RollingSaleCount12mo)
	assert.Equal(t, int64(60000), state.LifetimeNetSales)

	// Switching the threshold currency re-bases the same history.
	cfg, err := f.rates.Current()
	require.NoError(t, err)
	cfg.TierCurrency = "USD"
	_, err = f.rates.Update(context.Background(), cfg, "admin")
	require.NoError(t, err)

	_, err = f.svc.RecomputeSeller(context.Background(), sellerID)
	require.NoError(t, err)
	state, err = f.svc.GetState(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), state.RollingNetSales12mo)
}

func TestRecomputeWindowExcludesOldAndRefundedSales(t *testing.T) {
	f := newFixture(t)
	sellerID := f.seller(t)
	now := f.clock.Now()

	f.sale(t, sellerID, 90000, 0, "completed", now.AddDate(-1, 0, 0).Add(-time.Hour))
	f.sale(t, sellerID, 90000, 0, "refunded", now.Add(-time.Hour))
	f.sale(t, sellerID, 50000, 0, "completed", now.Add(-time.Hour))

	outcome, err := f.svc.RecomputeSeller(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnchanged, outcome)

	state, err := f.svc.GetState(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), state.RollingNetSales12mo)
	assert.Equal(t, int64(140000), state.LifetimeNetSales)
}

func TestRecomputeDowngradesWhenSalesAgeOut(t *testing.T) {
	f := newFixture(t)
	sellerID := f.seller(t)
	f.sale(t, sellerID, 600000, 0, "completed", f.clock.Now().Add(-time.Hour))

	outcome, err := f.svc.RecomputeSeller(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpgraded, outcome)

	f.clock.Advance(366 * 24 * time.Hour)
	outcome, err = f.svc.RecomputeSeller(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDowngraded, outcome)

	rate, err := f.svc.CurrentRate(context.Background(), sellerID)
	require.NoError(t, err)
	assert.Equal(t, "bronze", rate.Tier)
}

func TestRecomputeAllReportsOutcomes(t *testing.T) {
	f := newFixture(t)
	f.svc.pageSize = 2
	now := f.clock.Now()

	up := f.seller(t)
	f.seller(t)
	f.seller(t)
	f.sale(t, up, 100000, 0, "completed", now.Add(-time.Hour))

	report, err := f.svc.RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Recalculated)
	assert.Equal(t, 1, report.Upgraded)
	assert.Equal(t, 0, report.Downgraded)
	assert.Equal(t, 2, report.Unchanged)
	assert.Equal(t, 0, report.Errors)

	report, err = f.svc.RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Unchanged)
}

func TestRecomputeAllStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.seller(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := f.svc.RecomputeAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Recalculated)
}

func TestRecomputeWithoutConfigFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.svc.rates = ratetest.Empty()

	_, err := f.svc.RecomputeAll(context.Background())
	assert.True(t, errs.IsConfiguration(err))
}
