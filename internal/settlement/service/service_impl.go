package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/settlekit/internal/audit/domain"
	"github.com/smallbiznis/settlekit/internal/clock"
	"github.com/smallbiznis/settlekit/internal/observability/logger"
	"github.com/smallbiznis/settlekit/internal/observability/metrics"
	"github.com/smallbiznis/settlekit/internal/observability/tracing"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	sellertierdomain "github.com/smallbiznis/settlekit/internal/sellertier/domain"
	"github.com/smallbiznis/settlekit/internal/settlement/domain"
	vatdomain "github.com/smallbiznis/settlekit/internal/vat/domain"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"github.com/smallbiznis/settlekit/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Rates   rateconfigdomain.Store
	VAT     vatdomain.Calculator
	Tiers   sellertierdomain.Service
	Metrics *metrics.Metrics    `optional:"true"`
	Audit   auditdomain.Service `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	rates     rateconfigdomain.Store
	vat       vatdomain.Calculator
	tiers     sellertierdomain.Service
	metrics   *metrics.Metrics
	audit     auditdomain.Service
	validator *validation.Validator
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("settlement.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		rates:     p.Rates,
		vat:       p.VAT,
		tiers:     p.Tiers,
		metrics:   p.Metrics,
		audit:     p.Audit,
		validator: validation.New(),
	}
}

func (s *Service) Settle(ctx context.Context, event domain.PaymentEvent) (domain.SettleResult, error) {
	ctx, span := tracing.Start(ctx, "settlement.settle",
		attribute.String("source_type", string(event.SourceType)),
		attribute.String("currency", event.Currency),
	)
	defer span.End()

	result, err := s.settle(ctx, event)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "settle failed")
		s.metrics.RecordSettlement(ctx, string(event.SourceType), event.Currency, "rejected", 0)
		return domain.SettleResult{}, err
	}

	outcome := "created"
	if !result.Created {
		outcome = "duplicate"
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	s.metrics.RecordSettlement(ctx, string(result.Settlement.SourceType), result.Settlement.Currency, outcome, result.Settlement.GrossAmount)
	return result, nil
}

func (s *Service) settle(ctx context.Context, event domain.PaymentEvent) (domain.SettleResult, error) {
	event = normalizeEvent(event)
	if err := s.validateEvent(event); err != nil {
		return domain.SettleResult{}, err
	}
	log := logger.WithContext(ctx, s.log).With(zap.String("gateway_transaction_id", event.GatewayTransactionID))

	// A replayed event short-circuits before any rate lookup.
	if existing, err := s.repo.FindByGatewayTransactionID(ctx, s.db, event.GatewayTransactionID); err != nil {
		return domain.SettleResult{}, err
	} else if existing != nil {
		log.Debug("duplicate payment event", zap.String("settlement_id", existing.ID.String()))
		return domain.SettleResult{Settlement: *existing, Created: false}, nil
	}

	cfg, err := s.rates.Current()
	if err != nil {
		return domain.SettleResult{}, err
	}

	vatNumber := ""
	if event.BuyerVATNumber != nil {
		vatNumber = *event.BuyerVATNumber
	}
	// The gateway amount was already paid, so VAT is always carved out of it.
	vat, err := s.vat.Calculate(cfg, vatdomain.Request{
		AmountMinorUnits:  event.GrossAmountMinorUnits,
		Currency:          event.Currency,
		BuyerCountryCode:  event.BuyerCountryCode,
		IsBusinessBuyer:   event.IsBusinessBuyer,
		BuyerVATNumber:    vatNumber,
		AmountIncludesVAT: true,
	})
	if err != nil {
		return domain.SettleResult{}, err
	}
	if vat.GrossAmount != event.GrossAmountMinorUnits {
		return domain.SettleResult{}, fmt.Errorf("vat gross %d differs from captured amount %d", vat.GrossAmount, event.GrossAmountMinorUnits)
	}
	if vat.VATNumberRejected {
		log.Warn("buyer vat number rejected, consumer vat applied", zap.String("buyer_country", event.BuyerCountryCode))
	}

	tier, royalty, err := s.snapshotTier(ctx, cfg, event)
	if err != nil {
		return domain.SettleResult{}, err
	}

	fee := cfg.FeeFor(event.Currency, vat.GrossAmount)
	split, err := Split(vat.GrossAmount, vat.VATAmount, fee, royalty)
	if err != nil {
		if errors.Is(err, domain.ErrAmountBelowFee) {
			return domain.SettleResult{}, errs.Validation("gross_amount_minor_units", err)
		}
		log.Error("settlement split violates conservation", zap.Error(err))
		return domain.SettleResult{}, err
	}

	now := s.clock.Now().UTC()
	row := domain.Settlement{
		ID:                   s.genID.Generate(),
		GatewayTransactionID: event.GatewayTransactionID,
		SourceType:           event.SourceType,
		Currency:             event.Currency,
		GrossAmount:          split.Gross,
		VATAmount:            split.VAT,
		VATRateApplied:       vat.Rate,
		PricingType:          string(vat.PricingType),
		ReverseCharge:        vat.ReverseCharge,
		ExemptReason:         vat.ExemptReason,
		BuyerJurisdiction:    event.BuyerCountryCode,
		IsBusinessBuyer:      event.IsBusinessBuyer,
		BuyerVATNumber:       event.BuyerVATNumber,
		TransactionFee:       split.Fee,
		RoyaltyRateSnapshot:  royalty,
		TierSnapshot:         tier,
		PlatformCommission:   split.Commission,
		SellerEarnings:       split.Earnings,
		SellerID:             event.SellerID,
		BuyerID:              event.BuyerID,
		SchoolID:             event.SchoolID,
		Audience:             event.Audience,
		RateConfigVersion:    cfg.Version,
		Status:               domain.StatusCompleted,
		OccurredAt:           event.OccurredAt.UTC(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	var result domain.SettleResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.repo.Insert(ctx, tx, &row)
		if err != nil {
			return fmt.Errorf("insert settlement: %w", err)
		}
		if created {
			result = domain.SettleResult{Settlement: row, Created: true}
			return nil
		}
		existing, err := s.repo.FindByGatewayTransactionID(ctx, tx, event.GatewayTransactionID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("settlement %s conflicted but was not found", event.GatewayTransactionID)
		}
		result = domain.SettleResult{Settlement: *existing, Created: false}
		return nil
	})
	if err != nil {
		return domain.SettleResult{}, err
	}

	if result.Created {
		log.With(zap.String("settlement_id", row.ID.String())).Info("settlement created",
			zap.String("source_type", string(row.SourceType)),
			zap.String("currency", row.Currency),
			zap.Int64("gross_amount", row.GrossAmount),
			zap.String("tier", row.TierSnapshot),
			zap.Int64("rate_config_version", row.RateConfigVersion),
		)
		s.auditSettlement(ctx, auditdomain.ActionSettlementCreated, row, map[string]any{
			"source_type":         string(row.SourceType),
			"currency":            row.Currency,
			"gross_amount":        row.GrossAmount,
			"vat_amount":          row.VATAmount,
			"transaction_fee":     row.TransactionFee,
			"platform_commission": row.PlatformCommission,
			"seller_earnings":     row.SellerEarnings,
			"reverse_charge":      row.ReverseCharge,
			"buyer_vat_number":    derefString(row.BuyerVATNumber),
		})
	}
	return result, nil
}

// snapshotTier freezes the seller's current tier for marketplace sales. Other
// sources pay no royalty, so the platform keeps the whole net.
func (s *Service) snapshotTier(ctx context.Context, cfg rateconfigdomain.RateConfig, event domain.PaymentEvent) (string, decimal.Decimal, error) {
	if !event.SourceType.IsMarketplaceSale() {
		return domain.PlatformTier, decimal.Zero, nil
	}
	rate, err := s.tiers.CurrentRate(ctx, *event.SellerID)
	if err != nil {
		if errors.Is(err, sellertierdomain.ErrSellerNotFound) {
			return "", decimal.Zero, errs.Validation("seller_id", domain.ErrUnknownSeller)
		}
		return "", decimal.Zero, err
	}
	if _, ok := cfg.TierByName(rate.Tier); !ok {
		s.log.Warn("seller tier missing from current rate config",
			zap.String("seller_id", rate.SellerID.String()),
			zap.String("tier", rate.Tier),
			zap.Int64("rate_config_version", cfg.Version),
		)
	}
	return rate.Tier, rate.RoyaltyRate, nil
}

func (s *Service) validateEvent(event domain.PaymentEvent) error {
	if err := s.validator.Struct(event); err != nil {
		return err
	}
	if event.SourceType.IsMarketplaceSale() && (event.SellerID == nil || *event.SellerID == 0) {
		return errs.Validation("seller_id", domain.ErrSellerRequired)
	}
	if event.SourceType == domain.SourceSubscription && event.Audience == "" {
		return errs.Validation("audience", domain.ErrAudienceRequired)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Detail, error) {
	row, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Detail{}, err
	}
	if row == nil {
		return domain.Detail{}, domain.ErrNotFound
	}
	return s.detail(ctx, s.db, *row)
}

func (s *Service) GetByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (domain.Detail, error) {
	gatewayTransactionID = strings.TrimSpace(gatewayTransactionID)
	if gatewayTransactionID == "" {
		return domain.Detail{}, domain.ErrNotFound
	}
	row, err := s.repo.FindByGatewayTransactionID(ctx, s.db, gatewayTransactionID)
	if err != nil {
		return domain.Detail{}, err
	}
	if row == nil {
		return domain.Detail{}, domain.ErrNotFound
	}
	return s.detail(ctx, s.db, *row)
}

func (s *Service) MarkRefunded(ctx context.Context, id snowflake.ID, reason string) (domain.Detail, error) {
	return s.reverse(ctx, id, domain.StatusRefunded, domain.AdjustmentRefund, reason)
}

func (s *Service) MarkDisputed(ctx context.Context, id snowflake.ID, reason string) (domain.Detail, error) {
	return s.reverse(ctx, id, domain.StatusDisputed, domain.AdjustmentDispute, reason)
}

// reverse moves a completed settlement to a terminal status and books the
// negated split as an adjustment. The original split fields are untouched.
func (s *Service) reverse(ctx context.Context, id snowflake.ID, to domain.Status, kind domain.AdjustmentKind, reason string) (domain.Detail, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Detail{}, errs.Validation("reason", domain.ErrInvalidReason)
	}

	var (
		detail domain.Detail
		row    domain.Settlement
	)
	now := s.clock.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.Status != domain.StatusCompleted {
			return domain.ErrInvalidTransition
		}

		updated, err := s.repo.UpdateStatus(ctx, tx, id, domain.StatusCompleted, to, reason, now)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrInvalidTransition
		}

		adj := domain.NewAdjustment(s.genID.Generate(), *current, kind, reason, now)
		if err := s.repo.InsertAdjustment(ctx, tx, &adj); err != nil {
			return fmt.Errorf("insert adjustment: %w", err)
		}

		current.Status = to
		current.StatusReason = &reason
		current.UpdatedAt = now
		row = *current
		detail, err = s.detail(ctx, tx, row)
		return err
	})
	if err != nil {
		return domain.Detail{}, err
	}

	logger.WithSettlement(logger.WithContext(ctx, s.log), row.ID.String(), row.GatewayTransactionID).Info("settlement reversed",
		zap.String("status", string(to)),
		zap.String("reason", reason),
	)
	s.auditSettlement(ctx, auditdomain.ActionSettlementStatusChanged, row, map[string]any{
		"from_status": string(domain.StatusCompleted),
		"to_status":   string(to),
		"reason":      reason,
	})
	return detail, nil
}

func (s *Service) detail(ctx context.Context, db *gorm.DB, row domain.Settlement) (domain.Detail, error) {
	adjustments, err := s.repo.ListAdjustments(ctx, db, row.ID)
	if err != nil {
		return domain.Detail{}, err
	}
	return domain.Detail{Settlement: row, Adjustments: adjustments}, nil
}

func (s *Service) auditSettlement(ctx context.Context, action string, row domain.Settlement, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	targetID := row.ID.String()
	metadata["gateway_transaction_id"] = row.GatewayTransactionID
	if err := s.audit.AuditLog(ctx, string(auditdomain.ActorTypeSystem), nil, action, auditdomain.TargetSettlement, &targetID, metadata); err != nil {
		s.log.Warn("audit settlement failed", zap.String("action", action), zap.Error(err))
	}
}

func normalizeEvent(event domain.PaymentEvent) domain.PaymentEvent {
	event.GatewayTransactionID = strings.TrimSpace(event.GatewayTransactionID)
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))
	event.BuyerCountryCode = strings.ToUpper(strings.TrimSpace(event.BuyerCountryCode))
	event.SourceType = domain.SourceType(strings.ToLower(strings.TrimSpace(string(event.SourceType))))
	event.Audience = domain.Audience(strings.ToLower(strings.TrimSpace(string(event.Audience))))
	if event.BuyerVATNumber != nil {
		number := strings.TrimSpace(*event.BuyerVATNumber)
		if number == "" {
			event.BuyerVATNumber = nil
		} else {
			event.BuyerVATNumber = &number
		}
	}
	return event
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

var _ domain.Service = (*Service)(nil)
