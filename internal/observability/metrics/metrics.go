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

const exportInterval = 10 * time.Second

// Config configures the OTLP meter provider.
type Config struct {
	Enabled          bool
	ServiceName      string
	Environment      string
	ExporterEndpoint string
	ExporterProtocol string
}

// Metrics counts fee writes through the OTLP pipeline. Read-path latencies
// live in FeeMetrics on the Prometheus registry.
type Metrics struct {
	writes        metric.Int64Counter
	paymentAmount metric.Float64Histogram
}

// Write kinds reported under the "kind" attribute.
const (
	writePayment   = "payment"
	writeDiscount  = "discount"
	writeStructure = "fee_structure"
)

// NewProvider installs the global meter provider. A disabled config installs
// a no-op provider.
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
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	if log != nil {
		log.Named("metrics").Info("otlp metrics enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "feeledger"
	}
	meter := provider.Meter(name)

	writes, err := meter.Int64Counter("feeledger_fee_writes_total",
		metric.WithDescription("Payments, discount changes and fee structure updates."),
	)
	if err != nil {
		return nil, err
	}
	paymentAmount, err := meter.Float64Histogram("feeledger_payment_amount",
		metric.WithDescription("Amount of each recorded payment."),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{writes: writes, paymentAmount: paymentAmount}, nil
}

func (m *Metrics) RecordPayment(ctx context.Context, tenantID, paymentMode string, amount float64) {
	if m == nil {
		return
	}
	mode := attribute.String("payment_mode", strings.TrimSpace(paymentMode))
	m.count(ctx, tenantID, writePayment, mode)
	m.paymentAmount.Record(ctx, amount, metric.WithAttributes(FilterAttributes(mode)...))
}

// RecordDiscountChange counts a discount create, update or deactivate.
func (m *Metrics) RecordDiscountChange(ctx context.Context, tenantID, action string) {
	if m == nil {
		return
	}
	m.count(ctx, tenantID, writeDiscount, attribute.String("action", strings.TrimSpace(action)))
}

func (m *Metrics) RecordStructureUpdate(ctx context.Context, tenantID string) {
	if m == nil {
		return
	}
	m.count(ctx, tenantID, writeStructure)
}

func (m *Metrics) count(ctx context.Context, tenantID, kind string, extra ...attribute.KeyValue) {
	attrs := append([]attribute.KeyValue{
		attribute.String("tenant_id", strings.TrimSpace(tenantID)),
		attribute.String("kind", kind),
	}, extra...)
	m.writes.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", p)
	}
}

// Student, parent and payment ids are never metric labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"tenant_id":    {},
	"kind":         {},
	"payment_mode": {},
	"action":       {},
	"endpoint":     {},
	"status_code":  {},
	"reason":       {},
}

func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
