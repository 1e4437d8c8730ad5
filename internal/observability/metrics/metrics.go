package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes domain instruments for settlement, invoicing and revenue reads.
type Metrics struct {
	settlements       metric.Int64Counter
	settledAmount     metric.Int64Counter
	invoices          metric.Int64Counter
	invoiceDeliveries metric.Int64Counter
	revenueQueries    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "settlekit"
	}
	meter := provider.Meter(name)

	settlements, err := meter.Int64Counter("settlekit_settlements_total")
	if err != nil {
		return nil, err
	}
	settledAmount, err := meter.Int64Counter("settlekit_settled_gross_minor_total")
	if err != nil {
		return nil, err
	}
	invoices, err := meter.Int64Counter("settlekit_invoices_total")
	if err != nil {
		return nil, err
	}
	invoiceDeliveries, err := meter.Int64Counter("settlekit_invoice_deliveries_total")
	if err != nil {
		return nil, err
	}
	revenueQueries, err := meter.Int64Counter("settlekit_revenue_queries_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		settlements:       settlements,
		settledAmount:     settledAmount,
		invoices:          invoices,
		invoiceDeliveries: invoiceDeliveries,
		revenueQueries:    revenueQueries,
	}, nil
}

// RecordSettlement counts a settle call. Outcome is "created" or "duplicate".
func (m *Metrics) RecordSettlement(ctx context.Context, sourceType, currency, outcome string, gross int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source_type", strings.TrimSpace(sourceType)),
		attribute.String("currency", strings.TrimSpace(currency)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.settlements.Add(ctx, 1, metric.WithAttributes(attrs...))
	if outcome == "created" && gross > 0 {
		m.settledAmount.Add(ctx, gross, metric.WithAttributes(attrs...))
	}
}

// RecordInvoice counts get-or-create results. Outcome is "created" or "found".
func (m *Metrics) RecordInvoice(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.invoices.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

// RecordInvoiceDelivery counts delivery attempts by provider and outcome.
func (m *Metrics) RecordInvoiceDelivery(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.invoiceDeliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRevenueQuery counts analytics reads and whether they returned partial data.
func (m *Metrics) RecordRevenueQuery(ctx context.Context, query string, partial bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("query", query),
		attribute.Bool("partial", partial),
	)
	m.revenueQueries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source_type": {},
	"currency":    {},
	"outcome":     {},
	"provider":    {},
	"query":       {},
	"partial":     {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
