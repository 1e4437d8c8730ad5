package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/settlekit/internal/account/domain"
	auditdomain "github.com/smallbiznis/settlekit/internal/audit/domain"
	"github.com/smallbiznis/settlekit/internal/clock"
	"github.com/smallbiznis/settlekit/internal/config"
	invoicedomain "github.com/smallbiznis/settlekit/internal/invoice/domain"
	"github.com/smallbiznis/settlekit/internal/invoice/format"
	"github.com/smallbiznis/settlekit/internal/invoice/render"
	"github.com/smallbiznis/settlekit/internal/observability/logger"
	"github.com/smallbiznis/settlekit/internal/observability/metrics"
	settlementdomain "github.com/smallbiznis/settlekit/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// errAlreadyInvoiced rolls back the counter when another caller won the race.
var errAlreadyInvoiced = errors.New("settlement_already_invoiced")

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Repo        invoicedomain.Repository
	Settlements settlementdomain.Service
	Accounts    accountdomain.Repository
	Notifier    invoicedomain.Notifier
	Renderer    render.Renderer
	Metrics     *metrics.Metrics    `optional:"true"`
	Audit       auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.InvoiceConfig
	repo        invoicedomain.Repository
	settlements settlementdomain.Service
	accounts    accountdomain.Repository
	notifier    invoicedomain.Notifier
	renderer    render.Renderer
	metrics     *metrics.Metrics
	audit       auditdomain.Service
}

func NewService(p ServiceParam) invoicedomain.Service {
	cfg := p.Cfg.Invoice
	if strings.TrimSpace(cfg.NumberTemplate) == "" {
		cfg.NumberTemplate = format.DefaultInvoiceNumberTemplate
	}
	if cfg.MaxDeliveryAttempts <= 0 {
		cfg.MaxDeliveryAttempts = 5
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         cfg,
		repo:        p.Repo,
		settlements: p.Settlements,
		accounts:    p.Accounts,
		notifier:    p.Notifier,
		renderer:    p.Renderer,
		metrics:     p.Metrics,
		audit:       p.Audit,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, settlementID snowflake.ID, overrides *invoicedomain.BuyerOverrides) (invoicedomain.GetResult, error) {
	if settlementID == 0 {
		return invoicedomain.GetResult{}, invoicedomain.ErrSettlementNotFound
	}

	existing, err := s.repo.FindBySettlementID(ctx, s.db, settlementID)
	if err != nil {
		return invoicedomain.GetResult{}, err
	}
	if existing != nil {
		s.metrics.RecordInvoice(ctx, "found")
		return invoicedomain.GetResult{Invoice: *existing, Created: false}, nil
	}

	detail, err := s.settlements.Get(ctx, settlementID)
	if err != nil {
		if errors.Is(err, settlementdomain.ErrNotFound) {
			return invoicedomain.GetResult{}, invoicedomain.ErrSettlementNotFound
		}
		return invoicedomain.GetResult{}, err
	}
	settlement := detail.Settlement

	buyer, err := s.buyerSnapshot(ctx, settlement, overrides)
	if err != nil {
		return invoicedomain.GetResult{}, err
	}
	description, err := s.describe(ctx, settlement)
	if err != nil {
		return invoicedomain.GetResult{}, err
	}

	now := s.clock.Now().UTC()
	prefix := s.cfg.NumberPrefix
	if strings.TrimSpace(prefix) == "" {
		return invoicedomain.GetResult{}, invoicedomain.ErrInvalidPrefix
	}

	invoice := invoicedomain.Invoice{
		ID:           s.genID.Generate(),
		Prefix:       prefix,
		SettlementID: settlement.ID,
		Status:       invoicedomain.InvoiceStatusIssued,
		Currency:     settlement.Currency,
		Buyer:        datatypes.NewJSONType(buyer),
		Seller:       datatypes.NewJSONType(invoicedomain.Party{Name: s.cfg.SellerOfRecord, IsBusiness: true}),
		Pricing: datatypes.NewJSONType(invoicedomain.PricingBreakdown{
			Currency:      settlement.Currency,
			PricingType:   settlement.PricingType,
			GrossAmount:   settlement.GrossAmount,
			NetAmount:     settlement.GrossAmount - settlement.VATAmount,
			VATAmount:     settlement.VATAmount,
			VATRate:       settlement.VATRateApplied.String(),
			ReverseCharge: settlement.ReverseCharge,
			Description:   description,
		}),
		VATExemptReason: ExemptionProse(settlement.ReverseCharge, settlement.ExemptReason, buyer.VATNumber),
		DeliveryStatus:  invoicedomain.DeliveryPending,
		IssueDate:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := s.repo.NextSequence(ctx, tx, prefix, now)
		if err != nil {
			return fmt.Errorf("next invoice sequence: %w", err)
		}
		number, err := format.FormatInvoiceNumber(s.cfg.NumberTemplate, prefix, now, seq)
		if err != nil {
			return err
		}
		invoice.Sequence = seq
		invoice.InvoiceNumber = number

		inserted, err := s.repo.Insert(ctx, tx, &invoice)
		if err != nil {
			return err
		}
		if !inserted {
			return errAlreadyInvoiced
		}
		return nil
	})
	if errors.Is(err, errAlreadyInvoiced) {
		existing, findErr := s.repo.FindBySettlementID(ctx, s.db, settlementID)
		if findErr != nil {
			return invoicedomain.GetResult{}, findErr
		}
		if existing == nil {
			return invoicedomain.GetResult{}, err
		}
		s.metrics.RecordInvoice(ctx, "found")
		return invoicedomain.GetResult{Invoice: *existing, Created: false}, nil
	}
	if err != nil {
		return invoicedomain.GetResult{}, err
	}

	log := logger.WithSettlement(logger.WithContext(ctx, s.log), settlement.ID.String(), settlement.GatewayTransactionID)
	log.Info("invoice generated", zap.String("invoice_number", invoice.InvoiceNumber))
	s.metrics.RecordInvoice(ctx, "created")
	s.emitAudit(ctx, invoice)

	outcome := s.deliver(ctx, &invoice, 1)
	return invoicedomain.GetResult{Invoice: invoice, Created: true, Delivery: &outcome}, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return *invoice, nil
}

func (s *Service) RenderHTML(ctx context.Context, id snowflake.ID) (string, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.renderer.RenderHTML(render.InputFor(invoice, render.Brand{}))
}

// RetryFailedDeliveries resends invoices whose last delivery failed, skipping
// those that used up their attempts.
func (s *Service) RetryFailedDeliveries(ctx context.Context, limit int) (invoicedomain.DeliveryRetryReport, error) {
	var report invoicedomain.DeliveryRetryReport

	invoices, err := s.repo.ListUndelivered(ctx, s.db, limit)
	if err != nil {
		return report, err
	}

	for i := range invoices {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		invoice := invoices[i]

		attempts, err := s.repo.CountDeliveries(ctx, s.db, invoice.ID)
		if err != nil {
			s.log.Warn("count invoice deliveries failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
			report.Failed++
			continue
		}
		if attempts >= s.cfg.MaxDeliveryAttempts {
			report.Exhausted++
			continue
		}

		report.Attempted++
		if outcome := s.deliver(ctx, &invoice, attempts+1); outcome.Success {
			report.Delivered++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

// deliver never fails the caller. The outcome is stored as a delivery row and
// mirrored onto the invoice's delivery status.
func (s *Service) deliver(ctx context.Context, invoice *invoicedomain.Invoice, attempt int) invoicedomain.DeliveryOutcome {
	sendCtx := ctx
	if s.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
		defer cancel()
	}

	outcome := s.notifier.SendInvoice(sendCtx, *invoice)

	status := invoicedomain.DeliveryDelivered
	metricOutcome := "delivered"
	if !outcome.Success {
		status = invoicedomain.DeliveryFailed
		metricOutcome = "failed"
	}
	s.metrics.RecordInvoiceDelivery(ctx, outcome.Provider, metricOutcome)

	now := s.clock.Now().UTC()
	delivery := invoicedomain.Delivery{
		ID:        s.genID.Generate(),
		InvoiceID: invoice.ID,
		Provider:  outcome.Provider,
		Status:    status,
		Attempt:   attempt,
		CreatedAt: now,
	}
	if outcome.MessageID != "" {
		delivery.ProviderMessageID = &outcome.MessageID
	}
	if outcome.Error != "" {
		delivery.Error = &outcome.Error
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertDelivery(ctx, tx, &delivery); err != nil {
			return err
		}
		return s.repo.UpdateDeliveryStatus(ctx, tx, invoice.ID, status, now)
	})
	if err != nil {
		s.log.Warn("record invoice delivery failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
		return outcome
	}
	invoice.DeliveryStatus = status
	invoice.UpdatedAt = now

	if !outcome.Success {
		s.log.Warn("invoice delivery failed",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Int("attempt", attempt),
			zap.String("provider", outcome.Provider),
			zap.String("error", outcome.Error),
		)
	}
	return outcome
}

func (s *Service) buyerSnapshot(ctx context.Context, settlement settlementdomain.Settlement, overrides *invoicedomain.BuyerOverrides) (invoicedomain.Party, error) {
	buyer := invoicedomain.Party{
		CountryCode: settlement.BuyerJurisdiction,
		IsBusiness:  settlement.IsBusinessBuyer,
	}
	if settlement.BuyerVATNumber != nil {
		buyer.VATNumber = *settlement.BuyerVATNumber
	}

	if settlement.BuyerID != nil {
		acc, err := s.accounts.FindByID(ctx, *settlement.BuyerID)
		if err != nil {
			return invoicedomain.Party{}, err
		}
		if acc != nil {
			buyer.ID = acc.ID.String()
			buyer.Name = acc.Name
			buyer.Email = acc.Email
			if acc.CompanyName != nil {
				buyer.CompanyName = *acc.CompanyName
			}
			if buyer.VATNumber == "" && acc.VATNumber != nil {
				buyer.VATNumber = *acc.VATNumber
			}
		}
	}

	if overrides != nil {
		if overrides.Name != nil {
			buyer.Name = strings.TrimSpace(*overrides.Name)
		}
		if overrides.Email != nil {
			buyer.Email = strings.TrimSpace(*overrides.Email)
		}
		if overrides.IsBusiness != nil {
			buyer.IsBusiness = *overrides.IsBusiness
		}
		if overrides.CompanyName != nil {
			buyer.CompanyName = strings.TrimSpace(*overrides.CompanyName)
		}
		if overrides.VATNumber != nil {
			buyer.VATNumber = strings.TrimSpace(*overrides.VATNumber)
		}
	}
	if buyer.Name == "" {
		buyer.Name = "Customer"
	}
	return buyer, nil
}

func (s *Service) describe(ctx context.Context, settlement settlementdomain.Settlement) (string, error) {
	switch settlement.SourceType {
	case settlementdomain.SourceResourceSale:
		if settlement.SellerID == nil {
			return "Resource purchase", nil
		}
		seller, err := s.accounts.FindByID(ctx, *settlement.SellerID)
		if err != nil {
			return "", err
		}
		if seller == nil {
			return "Resource purchase", nil
		}
		return "Resource purchase from " + seller.Name, nil
	case settlementdomain.SourceSubscription:
		if settlement.Audience == settlementdomain.AudienceSchool {
			return "School subscription", nil
		}
		return "Teacher subscription", nil
	case settlementdomain.SourceAdPayment:
		return "Job advert placement", nil
	default:
		return string(settlement.SourceType), nil
	}
}

func (s *Service) emitAudit(ctx context.Context, invoice invoicedomain.Invoice) {
	if s.audit == nil {
		return
	}
	targetID := invoice.ID.String()
	err := s.audit.AuditLog(ctx, string(auditdomain.ActorTypeSystem), nil, auditdomain.ActionInvoiceGenerated, auditdomain.TargetInvoice, &targetID, map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"settlement_id":  invoice.SettlementID.String(),
		"buyer_email":    invoice.Buyer.Data().Email,
	})
	if err != nil {
		s.log.Warn("audit invoice failed", zap.String("invoice_id", targetID), zap.Error(err))
	}
}

var _ invoicedomain.Service = (*Service)(nil)
