package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/settlekit/internal/clock"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	"github.com/smallbiznis/settlekit/internal/rateconfig/ratetest"
	sellertierdomain "github.com/smallbiznis/settlekit/internal/sellertier/domain"
	"github.com/smallbiznis/settlekit/internal/settlement/domain"
	"github.com/smallbiznis/settlekit/internal/settlement/repository"
	vatdomain "github.com/smallbiznis/settlekit/internal/vat/domain"
	vatservice "github.com/smallbiznis/settlekit/internal/vat/service"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type mockTiers struct {
	mock.Mock
}

func (m *mockTiers) CurrentRate(ctx context.Context, sellerID snowflake.ID) (sellertierdomain.TierRate, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(sellertierdomain.TierRate), args.Error(1)
}

func (m *mockTiers) RecomputeAll(ctx context.Context) (sellertierdomain.RecomputeReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(sellertierdomain.RecomputeReport), args.Error(1)
}

func (m *mockTiers) RecomputeSeller(ctx context.Context, sellerID snowflake.ID) (sellertierdomain.RecomputeOutcome, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(sellertierdomain.RecomputeOutcome), args.Error(1)
}

func (m *mockTiers) GetState(ctx context.Context, sellerID snowflake.ID) (sellertierdomain.State, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(sellertierdomain.State), args.Error(1)
}

const (
	bronzeSeller  snowflake.ID = 1001
	unknownSeller snowflake.ID = 1002
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *mockTiers) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Settlement{}, &domain.Adjustment{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	tiers := &mockTiers{}
	tiers.On("CurrentRate", mock.Anything, bronzeSeller).Return(sellertierdomain.TierRate{
		SellerID:          bronzeSeller,
		Tier:              "bronze",
		RoyaltyRate:       decimal.RequireFromString("0.6"),
		RateConfigVersion: 1,
	}, nil).Maybe()
	tiers.On("CurrentRate", mock.Anything, unknownSeller).Return(sellertierdomain.TierRate{}, sellertierdomain.ErrSellerNotFound).Maybe()

	svc := NewService(Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		Rates: ratetest.NewStore(ratetest.Default()),
		VAT:   vatservice.NewCalculator(vatservice.Params{Log: log}),
		Tiers: tiers,
	}).(*Service)
	return svc, db, tiers
}

func sellerID(id snowflake.ID) *snowflake.ID { return &id }

func saleEvent(gatewayID string, gross int64) domain.PaymentEvent {
	return domain.PaymentEvent{
		GatewayTransactionID:  gatewayID,
		GrossAmountMinorUnits: gross,
		Currency:              "GBP",
		SourceType:            domain.SourceResourceSale,
		BuyerCountryCode:      "GB",
		SellerID:              sellerID(bronzeSeller),
		OccurredAt:            time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC),
	}
}

func TestSettleUKConsumerInclusiveVAT(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.Settle(context.Background(), saleEvent("pi_uk_1000", 1000))
	require.NoError(t, err)
	require.True(t, res.Created)

	s := res.Settlement
	assert.Equal(t, int64(1000), s.GrossAmount)
	assert.Equal(t, int64(167), s.VATAmount)
	assert.Equal(t, int64(833), s.NetAmount())
	assert.Equal(t, int64(0), s.TransactionFee)
	assert.Equal(t, int64(333), s.PlatformCommission)
	assert.Equal(t, int64(500), s.SellerEarnings)
	assert.Equal(t, "bronze", s.TierSnapshot)
	assert.True(t, s.RoyaltyRateSnapshot.Equal(decimal.RequireFromString("0.6")))
	assert.Equal(t, int64(1), s.RateConfigVersion)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	assert.NoError(t, s.Breakdown().Check())
}

func TestSettleExclusivePricingKeepsCapturedGross(t *testing.T) {
	svc, _, _ := newTestService(t)
	cfg := ratetest.Default()
	cfg.VAT.PricingType = rateconfigdomain.PricingExclusive
	svc.rates = ratetest.NewStore(cfg)

	res, err := svc.Settle(context.Background(), saleEvent("pi_exclusive", 1000))
	require.NoError(t, err)

	s := res.Settlement
	assert.Equal(t, int64(1000), s.GrossAmount)
	assert.Equal(t, int64(167), s.VATAmount)
	assert.Equal(t, int64(833), s.NetAmount())
	assert.Equal(t, string(rateconfigdomain.PricingExclusive), s.PricingType)
	assert.Equal(t, int64(333), s.PlatformCommission)
	assert.Equal(t, int64(500), s.SellerEarnings)
	assert.NoError(t, s.Breakdown().Check())
}

func TestSettleLogsSettlementFieldsOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	core, logs := observer.New(zap.InfoLevel)
	svc.log = zap.New(core)

	res, err := svc.Settle(context.Background(), saleEvent("pi_logged", 1000))
	require.NoError(t, err)

	entries := logs.FilterMessage("settlement created").All()
	require.Len(t, entries, 1)
	counts := map[string]int{}
	for _, field := range entries[0].Context {
		counts[field.Key]++
	}
	assert.Equal(t, 1, counts["gateway_transaction_id"])
	assert.Equal(t, 1, counts["settlement_id"])
	assert.Equal(t, res.Settlement.ID.String(), entries[0].ContextMap()["settlement_id"])
}

func TestSettleEUReverseCharge(t *testing.T) {
	svc, _, _ := newTestService(t)
	number := "DE123456789"
	event := saleEvent("pi_de_b2b", 5000)
	event.Currency = "EUR"
	event.BuyerCountryCode = "DE"
	event.IsBusinessBuyer = true
	event.BuyerVATNumber = &number

	res, err := svc.Settle(context.Background(), event)
	require.NoError(t, err)
	s := res.Settlement
	assert.True(t, s.ReverseCharge)
	assert.Equal(t, int64(0), s.VATAmount)
	assert.Equal(t, vatdomain.ExemptReverseCharge, s.ExemptReason)
	assert.Equal(t, int64(2000), s.PlatformCommission)
	assert.Equal(t, int64(3000), s.SellerEarnings)
}

func TestSettleAppliesFeeBelowMinimumTicket(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.Settle(context.Background(), saleEvent("pi_small", 250))
	require.NoError(t, err)
	s := res.Settlement
	assert.Equal(t, int64(42), s.VATAmount)
	assert.Equal(t, int64(20), s.TransactionFee)
	assert.Equal(t, int64(75), s.PlatformCommission)
	assert.Equal(t, int64(113), s.SellerEarnings)
	assert.NoError(t, s.Breakdown().Check())
}

func TestSettleReplayCreatesOneSettlement(t *testing.T) {
	svc, db, _ := newTestService(t)
	event := saleEvent("pi_replay", 1000)

	first, err := svc.Settle(context.Background(), event)
	require.NoError(t, err)
	second, err := svc.Settle(context.Background(), event)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Settlement.ID, second.Settlement.ID)

	var count int64
	require.NoError(t, db.Model(&domain.Settlement{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentReplayCreatesOneSettlement(t *testing.T) {
	svc, db, _ := newTestService(t)
	// Shared-cache sqlite reports table locks instead of waiting, so callers queue on one connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const deliveries = 10
	event := saleEvent("pi_concurrent", 1000)
	results := make(chan domain.SettleResult, deliveries)
	failures := make(chan error, deliveries)

	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Settle(context.Background(), event)
			if err != nil {
				failures <- err
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)
	close(failures)

	for err := range failures {
		require.NoError(t, err)
	}

	created := 0
	var ids []snowflake.ID
	for res := range results {
		if res.Created {
			created++
		}
		ids = append(ids, res.Settlement.ID)
	}
	require.Len(t, ids, deliveries)
	assert.Equal(t, 1, created)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int64
	require.NoError(t, db.Model(&domain.Settlement{}).Where("gateway_transaction_id = ?", "pi_concurrent").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInsertConflictOnGatewayTransactionID(t *testing.T) {
	svc, db, _ := newTestService(t)
	res, err := svc.Settle(context.Background(), saleEvent("pi_conflict", 1000))
	require.NoError(t, err)

	dup := res.Settlement
	dup.ID = 99
	created, err := svc.repo.Insert(context.Background(), db, &dup)
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&domain.Settlement{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSettleNonSaleKeepsWholeNet(t *testing.T) {
	svc, _, tiers := newTestService(t)
	event := domain.PaymentEvent{
		GatewayTransactionID:  "pi_sub",
		GrossAmountMinorUnits: 1200,
		Currency:              "GBP",
		SourceType:            domain.SourceSubscription,
		BuyerCountryCode:      "GB",
		Audience:              domain.AudienceSchool,
		OccurredAt:            time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	res, err := svc.Settle(context.Background(), event)
	require.NoError(t, err)
	s := res.Settlement
	assert.Equal(t, int64(200), s.VATAmount)
	assert.Equal(t, int64(1000), s.PlatformCommission)
	assert.Equal(t, int64(0), s.SellerEarnings)
	assert.Equal(t, domain.PlatformTier, s.TierSnapshot)
	tiers.AssertNotCalled(t, "CurrentRate", mock.Anything, mock.Anything)
}

func TestSettleRejections(t *testing.T) {
	svc, db, _ := newTestService(t)

	unsupported := saleEvent("pi_jpy", 1000)
	unsupported.Currency = "JPY"
	_, err := svc.Settle(context.Background(), unsupported)
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, "currency", errs.FieldOf(err))

	unknown := saleEvent("pi_unknown", 1000)
	unknown.SellerID = sellerID(unknownSeller)
	_, err = svc.Settle(context.Background(), unknown)
	assert.ErrorIs(t, err, domain.ErrUnknownSeller)
	assert.Equal(t, "seller_id", errs.FieldOf(err))

	noSeller := saleEvent("pi_no_seller", 1000)
	noSeller.SellerID = nil
	_, err = svc.Settle(context.Background(), noSeller)
	assert.ErrorIs(t, err, domain.ErrSellerRequired)

	zero := saleEvent("pi_zero", 0)
	_, err = svc.Settle(context.Background(), zero)
	assert.Equal(t, "gross_amount_minor_units", errs.FieldOf(err))

	var count int64
	require.NoError(t, db.Model(&domain.Settlement{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSettleFailsClosedWithoutRateConfig(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.rates = ratetest.Empty()

	_, err := svc.Settle(context.Background(), saleEvent("pi_no_cfg", 1000))
	assert.True(t, errs.IsConfiguration(err))
}

func TestMarkRefundedWritesNegatedAdjustment(t *testing.T) {
	svc, _, _ := newTestService(t)
	res, err := svc.Settle(context.Background(), saleEvent("pi_refund", 1000))
	require.NoError(t, err)

	detail, err := svc.MarkRefunded(context.Background(), res.Settlement.ID, "buyer request")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, detail.Status)
	require.Len(t, detail.Adjustments, 1)

	adj := detail.Adjustments[0]
	assert.Equal(t, domain.AdjustmentRefund, adj.Kind)
	assert.Equal(t, int64(-1000), adj.GrossAmount)
	assert.Equal(t, int64(-500), adj.SellerEarnings)

	// The historical split is unchanged.
	assert.Equal(t, int64(1000), detail.GrossAmount)
	assert.Equal(t, int64(500), detail.SellerEarnings)

	_, err = svc.MarkDisputed(context.Background(), res.Settlement.ID, "chargeback")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	fetched, err := svc.GetByGatewayTransactionID(context.Background(), "pi_refund")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, fetched.Status)
	assert.Len(t, fetched.Adjustments, 1)
}

func TestGetUnknownSettlement(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
