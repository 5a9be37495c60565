package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukasoft/pos/internal/payments/metrics"
	"github.com/dukasoft/pos/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableInitiatePushHandler struct {
	handler InitiatePushHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableInitiatePushHandler(handler InitiatePushHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableInitiatePushHandler {
	return &ObservableInitiatePushHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableInitiatePushHandler) Handle(ctx context.Context, cmd InitiatePushPaymentCommand) (*InitiatePushPaymentResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "InitiatePushPaymentCommand.Handle")
	defer span.End()

	var success bool
	defer func() {
		o.metrics.RecordPushInitiated(ctx, success)
	}()

	o.logger.InfoContext(ctx, "initiating push payment",
		"order_id", cmd.OrderID,
		"amount", cmd.Amount.StringFixed(2),
	)

	start := time.Now()
	result, err := o.handler.Handle(ctx, cmd)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "push payment initiation failed",
			"error", err,
			"order_id", cmd.OrderID,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", cmd.OrderID),
		attribute.String("transaction.checkout_request_id", result.CheckoutRequestID),
		attribute.Float64("gateway.roundtrip_seconds", time.Since(start).Seconds()),
	)

	o.logger.InfoContext(ctx, "push payment initiated",
		"order_id", cmd.OrderID,
		"checkout_request_id", result.CheckoutRequestID,
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return result, nil
}
