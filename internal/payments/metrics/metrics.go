package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	pushPaymentsInitiated metric.Int64Counter
	callbacksTotal        metric.Int64Counter
	duplicateCallbacks    metric.Int64Counter
	callbackDuration      metric.Float64Histogram
	paymentsApplied       metric.Int64Counter
	paymentAmount         metric.Float64Histogram
	sweptTransactions     metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.pushPaymentsInitiated, err = meter.Int64Counter(
		"push_payments_initiated_total",
		metric.WithDescription("Total push-payment requests accepted by the gateway"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create push_payments_initiated_total counter: %w", err)
	}

	m.callbacksTotal, err = meter.Int64Counter(
		"payment_callbacks_total",
		metric.WithDescription("Total payment callbacks processed"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_callbacks_total counter: %w", err)
	}

	m.duplicateCallbacks, err = meter.Int64Counter(
		"duplicate_callbacks_total",
		metric.WithDescription("Callbacks short-circuited by the idempotency guard"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duplicate_callbacks_total counter: %w", err)
	}

	m.callbackDuration, err = meter.Float64Histogram(
		"callback_processing_duration_seconds",
		metric.WithDescription("Duration of callback reconciliation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create callback_processing_duration histogram: %w", err)
	}

	m.paymentsApplied, err = meter.Int64Counter(
		"payments_applied_total",
		metric.WithDescription("Payments applied to orders"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payments_applied_total counter: %w", err)
	}

	m.paymentAmount, err = meter.Float64Histogram(
		"payment_applied_amount",
		metric.WithDescription("Amount applied per successful payment"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_applied_amount histogram: %w", err)
	}

	m.sweptTransactions, err = meter.Int64Counter(
		"swept_transactions_total",
		metric.WithDescription("Pending transactions timed out by the sweeper"),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create swept_transactions_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordPushInitiated(ctx context.Context, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.pushPaymentsInitiated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordCallback(ctx context.Context, result string, durationSeconds float64) {
	m.callbacksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
	m.callbackDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordDuplicateCallback(ctx context.Context) {
	m.duplicateCallbacks.Add(ctx, 1)
}

func (m *Metrics) RecordPaymentApplied(ctx context.Context, amount float64) {
	m.paymentsApplied.Add(ctx, 1)
	m.paymentAmount.Record(ctx, amount)
}

func (m *Metrics) RecordSwept(ctx context.Context, count int) {
	if count > 0 {
		m.sweptTransactions.Add(ctx, int64(count))
	}
}
