package kafka

import (
	"context"
	"log/slog"
)

// NoopEventBus logs events without sending them to Kafka. Useful for local dev before wiring Kafka.
type NoopEventBus struct{}

// NewNoopEventBus returns a new no-op event publisher.
func NewNoopEventBus() *NoopEventBus {
	return &NoopEventBus{}
}

func (n *NoopEventBus) PublishPushPaymentInitiated(_ context.Context, checkoutRequestID string) error {
	slog.Debug("event::push_payment_initiated", "checkout_request_id", checkoutRequestID)
	return nil
}

func (n *NoopEventBus) PublishPaymentApplied(_ context.Context, orderID string, amount string) error {
	slog.Debug("event::payment_applied", "order_id", orderID, "amount", amount)
	return nil
}

func (n *NoopEventBus) PublishOrderFailed(_ context.Context, orderID string, reason string) error {
	slog.Debug("event::order_failed", "order_id", orderID, "reason", reason)
	return nil
}
