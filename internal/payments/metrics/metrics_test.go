package metrics

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	return metrics, reader
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestInitializeMetrics(t *testing.T) {
	t.Run("initializes all metric instruments successfully", func(t *testing.T) {
		metrics, _ := newTestMetrics(t)

		if metrics.pushPaymentsInitiated == nil {
			t.Error("pushPaymentsInitiated is nil")
		}
		if metrics.callbacksTotal == nil {
			t.Error("callbacksTotal is nil")
		}
		if metrics.duplicateCallbacks == nil {
			t.Error("duplicateCallbacks is nil")
		}
		if metrics.callbackDuration == nil {
			t.Error("callbackDuration is nil")
		}
		if metrics.paymentsApplied == nil {
			t.Error("paymentsApplied is nil")
		}
		if metrics.paymentAmount == nil {
			t.Error("paymentAmount is nil")
		}
		if metrics.sweptTransactions == nil {
			t.Error("sweptTransactions is nil")
		}
	})
}

func TestRecordPushInitiated(t *testing.T) {
	t.Run("records push initiations with status attribute", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordPushInitiated(ctx, true)
		metrics.RecordPushInitiated(ctx, false)

		m, found := collectMetric(t, reader, "push_payments_initiated_total")
		if !found {
			t.Fatal("push_payments_initiated_total metric not found")
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatal("Expected Sum[int64] data type")
		}
		if len(sum.DataPoints) != 2 {
			t.Errorf("Expected 2 data points, got %d", len(sum.DataPoints))
		}
	})
}

func TestRecordCallback(t *testing.T) {
	t.Run("records callback count and duration", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordCallback(ctx, "applied", 0.12)
		metrics.RecordCallback(ctx, "failed", 0.05)

		m, found := collectMetric(t, reader, "payment_callbacks_total")
		if !found {
			t.Fatal("payment_callbacks_total metric not found")
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatal("Expected Sum[int64] data type")
		}
		if len(sum.DataPoints) != 2 {
			t.Errorf("Expected 2 data points, got %d", len(sum.DataPoints))
		}
	})

	t.Run("records callback duration histogram", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordCallback(ctx, "applied", 0.12)
		metrics.RecordCallback(ctx, "applied", 0.31)

		m, found := collectMetric(t, reader, "callback_processing_duration_seconds")
		if !found {
			t.Fatal("callback_processing_duration_seconds metric not found")
		}
		histogram, ok := m.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatal("Expected Histogram[float64] data type")
		}
		if len(histogram.DataPoints) != 1 {
			t.Fatalf("Expected 1 data point, got %d", len(histogram.DataPoints))
		}
		if histogram.DataPoints[0].Count != 2 {
			t.Errorf("Expected count=2, got %d", histogram.DataPoints[0].Count)
		}
	})
}

func TestRecordDuplicateCallback(t *testing.T) {
	t.Run("counts duplicate deliveries", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordDuplicateCallback(ctx)
		metrics.RecordDuplicateCallback(ctx)

		m, found := collectMetric(t, reader, "duplicate_callbacks_total")
		if !found {
			t.Fatal("duplicate_callbacks_total metric not found")
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatal("Expected Sum[int64] data type")
		}
		if len(sum.DataPoints) != 1 {
			t.Fatalf("Expected 1 data point, got %d", len(sum.DataPoints))
		}
		if sum.DataPoints[0].Value != 2 {
			t.Errorf("Expected value=2, got %d", sum.DataPoints[0].Value)
		}
	})
}

func TestRecordPaymentApplied(t *testing.T) {
	t.Run("records applied count and amount", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordPaymentApplied(ctx, 250.0)
		metrics.RecordPaymentApplied(ctx, 99.5)

		m, found := collectMetric(t, reader, "payments_applied_total")
		if !found {
			t.Fatal("payments_applied_total metric not found")
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatal("Expected Sum[int64] data type")
		}
		if sum.DataPoints[0].Value != 2 {
			t.Errorf("Expected value=2, got %d", sum.DataPoints[0].Value)
		}

		amount, found := collectMetric(t, reader, "payment_applied_amount")
		if !found {
			t.Fatal("payment_applied_amount metric not found")
		}
		histogram, ok := amount.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatal("Expected Histogram[float64] data type")
		}
		if histogram.DataPoints[0].Count != 2 {
			t.Errorf("Expected count=2, got %d", histogram.DataPoints[0].Count)
		}
	})
}

func TestRecordSwept(t *testing.T) {
	t.Run("records swept transaction count", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordSwept(ctx, 3)

		m, found := collectMetric(t, reader, "swept_transactions_total")
		if !found {
			t.Fatal("swept_transactions_total metric not found")
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatal("Expected Sum[int64] data type")
		}
		if sum.DataPoints[0].Value != 3 {
			t.Errorf("Expected value=3, got %d", sum.DataPoints[0].Value)
		}
	})

	t.Run("zero sweeps record nothing", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)

		metrics.RecordSwept(context.Background(), 0)

		if _, found := collectMetric(t, reader, "swept_transactions_total"); found {
			t.Error("expected no data points for a zero sweep")
		}
	})
}
