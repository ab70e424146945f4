package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func disabledMeterProvider(t *testing.T) *telemetry.MeterProvider {
	t.Helper()
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "ledger-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return mp
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp := disabledMeterProvider(t)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("ledger"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Second,
		ServiceName:       "ledger-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, mp.IsEnabled())
	require.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestMetricHelpers(t *testing.T) {
	ctx := context.Background()
	meter := disabledMeterProvider(t).Meter("test")

	counter, err := telemetry.NewCounter(meter, "ledger_test_total", "test counter", "{items}")
	require.NoError(t, err)
	counter.Inc(ctx, telemetry.AttrChannel.String("shop"))
	counter.Add(ctx, 5, telemetry.AttrCostMethod.String("fifo"))

	histogram, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "ledger_job_duration_seconds",
		Description: "Job duration",
		Unit:        "s",
		Boundaries:  []float64{0.1, 1, 10},
	})
	require.NoError(t, err)
	histogram.RecordDuration(ctx, 250*time.Millisecond, telemetry.AttrWorkflow.String("stock_valuation"))

	gauge, err := telemetry.NewFloatGauge(meter, "ledger_test_value", "test gauge", "{currency}")
	require.NoError(t, err)
	gauge.Record(ctx, 12.5)
}

func TestCommonAttributes(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{string(telemetry.AttrChannel), "channel"},
		{string(telemetry.AttrCostMethod), "cost_method"},
		{string(telemetry.AttrWorkflow), "workflow"},
		{string(telemetry.AttrErrorCode), "error_code"},
		{string(telemetry.AttrOutcome), "outcome"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}
}
