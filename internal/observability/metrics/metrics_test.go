package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tenant_id", "123"),
		attribute.String("student_id", "456"),
		attribute.String("payment_mode", "cash"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("tenant_id"), attrs[0].Key)
	assert.Equal(t, attribute.Key("payment_mode"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	ctx := context.Background()
	var m *Metrics
	m.RecordPayment(ctx, "1", "cash", 500)
	m.RecordDiscountChange(ctx, "1", "create")
	m.RecordStructureUpdate(ctx, "1")

	noopMetrics, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	noopMetrics.RecordPayment(ctx, "1", "cash", 500)
}

func TestWritesCountedByKind(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{ServiceName: "feeledger"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPayment(ctx, "1", "upi", 1500)
	m.RecordPayment(ctx, "1", "upi", 500)
	m.RecordDiscountChange(ctx, "1", "create")
	m.RecordStructureUpdate(ctx, "1")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byKind := map[string]int64{}
	var paymentSum float64
	for _, md := range rm.ScopeMetrics[0].Metrics {
		switch data := md.Data.(type) {
		case metricdata.Sum[int64]:
			for _, dp := range data.DataPoints {
				kind, _ := dp.Attributes.Value("kind")
				byKind[kind.AsString()] += dp.Value
			}
		case metricdata.Histogram[float64]:
			for _, dp := range data.DataPoints {
				paymentSum += dp.Sum
			}
		}
	}
	assert.Equal(t, map[string]int64{"payment": 2, "discount": 1, "fee_structure": 1}, byKind)
	assert.Equal(t, 2000.0, paymentSum)
}
