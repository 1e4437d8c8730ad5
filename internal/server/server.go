package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/settlekit/internal/account"
	"github.com/smallbiznis/settlekit/internal/audit"
	auditdomain "github.com/smallbiznis/settlekit/internal/audit/domain"
	"github.com/smallbiznis/settlekit/internal/cache"
	"github.com/smallbiznis/settlekit/internal/config"
	"github.com/smallbiznis/settlekit/internal/invoice"
	invoicedomain "github.com/smallbiznis/settlekit/internal/invoice/domain"
	"github.com/smallbiznis/settlekit/internal/observability"
	obslogger "github.com/smallbiznis/settlekit/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/settlekit/internal/observability/metrics"
	obstracing "github.com/smallbiznis/settlekit/internal/observability/tracing"
	"github.com/smallbiznis/settlekit/internal/providers"
	"github.com/smallbiznis/settlekit/internal/rateconfig"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	"github.com/smallbiznis/settlekit/internal/revenue"
	revenuedomain "github.com/smallbiznis/settlekit/internal/revenue/domain"
	"github.com/smallbiznis/settlekit/internal/sellertier"
	sellertierdomain "github.com/smallbiznis/settlekit/internal/sellertier/domain"
	"github.com/smallbiznis/settlekit/internal/settlement"
	settlementdomain "github.com/smallbiznis/settlekit/internal/settlement/domain"
	"github.com/smallbiznis/settlekit/internal/vat"
	"github.com/smallbiznis/settlekit/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Domains is every service the HTTP adapter and the scheduler depend on.
var Domains = fx.Options(
	account.Module,
	audit.Module,
	rateconfig.Module,
	vat.Module,
	cache.Module,
	sellertier.Module,
	settlement.Module,
	providers.Module,
	invoice.Module,
	revenue.Module,
)

var Module = fx.Module("http.server",
	Domains,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	validation.SetupGin()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RunHTTP serves the engine for the lifetime of the app.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	settlementSvc settlementdomain.Service
	invoiceSvc    invoicedomain.Service
	revenueSvc    revenuedomain.Service
	tierSvc       sellertierdomain.Service
	rates         rateconfigdomain.Store
	auditSvc      auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	SettlementSvc settlementdomain.Service
	InvoiceSvc    invoicedomain.Service
	RevenueSvc    revenuedomain.Service
	TierSvc       sellertierdomain.Service
	Rates         rateconfigdomain.Store
	AuditSvc      auditdomain.Service `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		settlementSvc: p.SettlementSvc,
		invoiceSvc:    p.InvoiceSvc,
		revenueSvc:    p.RevenueSvc,
		tierSvc:       p.TierSvc,
		rates:         p.Rates,
		auditSvc:      p.AuditSvc,
	}
	s.registerAPIRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Settlements --------
	api.POST("/settlements", s.Settle)
	api.GET("/settlements/:id", s.GetSettlement)
	api.GET("/settlements/by-gateway/:gateway_id", s.GetSettlementByGatewayID)
	api.POST("/settlements/:id/refund", s.RefundSettlement)
	api.POST("/settlements/:id/dispute", s.DisputeSettlement)

	// -------- Invoices --------
	api.POST("/settlements/:id/invoice", s.GetOrCreateInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.GET("/invoices/:id/render", s.RenderInvoice)

	// -------- Seller tiers --------
	api.GET("/sellers/:id/tier", s.GetSellerTier)
	api.POST("/sellers/:id/tier/recompute", s.RecomputeSellerTier)

	// -------- Revenue --------
	api.GET("/revenue/overview", s.GetRevenueOverview)
	api.GET("/revenue/timeseries", s.GetRevenueTimeSeries)
	api.GET("/revenue/mrr", s.GetRevenueMRR)
	api.GET("/revenue/churn", s.GetRevenueChurn)
	api.GET("/revenue/breakdown", s.GetRevenueBreakdown)

	// -------- Rate configuration --------
	api.GET("/rates", s.GetCurrentRates)
	api.PUT("/rates", s.UpdateRates)
	api.GET("/rates/history", s.ListRateHistory)

	api.GET("/audit-logs", s.ListAuditLogs)
}
