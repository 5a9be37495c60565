package adapters

import (
	"context"
	"time"

	"github.com/dukasoft/pos/internal/kafka"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/dukasoft/pos/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) PublishPushPaymentInitiated(ctx context.Context, checkoutRequestID string) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.PublishPushPaymentInitiated")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("transaction.checkout_request_id", checkoutRequestID),
		attribute.String("event.type", "payment.push_initiated"),
		attribute.String("topic", "payment.push_initiated"),
	)

	start := time.Now()
	err := e.bus.PublishPushPaymentInitiated(ctx, checkoutRequestID)
	duration := time.Since(start).Seconds()

	e.metrics.RecordPublish(ctx, "payment.push_initiated", duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (e *ObservableEventBus) PublishPaymentApplied(ctx context.Context, orderID string, amount string) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.PublishPaymentApplied")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("payment.amount", amount),
		attribute.String("event.type", "payment.applied"),
		attribute.String("topic", "payment.applied"),
	)

	start := time.Now()
	err := e.bus.PublishPaymentApplied(ctx, orderID, amount)
	duration := time.Since(start).Seconds()

	e.metrics.RecordPublish(ctx, "payment.applied", duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (e *ObservableEventBus) PublishOrderFailed(ctx context.Context, orderID string, reason string) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.PublishOrderFailed")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("event.type", "order.failed"),
		attribute.String("topic", "order.failed"),
		attribute.String("failure.reason", reason),
	)

	start := time.Now()
	err := e.bus.PublishOrderFailed(ctx, orderID, reason)
	duration := time.Since(start).Seconds()

	e.metrics.RecordPublish(ctx, "order.failed", duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
