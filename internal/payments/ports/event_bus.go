package ports

import "context"

// EventBus defines the contract for publishing payment lifecycle events.
type EventBus interface {
	PublishPushPaymentInitiated(ctx context.Context, checkoutRequestID string) error
	PublishPaymentApplied(ctx context.Context, orderID string, amount string) error
	PublishOrderFailed(ctx context.Context, orderID string, reason string) error
}
