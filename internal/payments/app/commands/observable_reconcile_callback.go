package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukasoft/pos/internal/payments/metrics"
	"github.com/dukasoft/pos/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableReconcileHandler struct {
	handler ReconcileHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableReconcileHandler(handler ReconcileHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableReconcileHandler {
	return &ObservableReconcileHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableReconcileHandler) Handle(ctx context.Context, cmd ReconcileCallbackCommand) (*ReconcileResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReconcileCallbackCommand.Handle")
	defer span.End()

	start := time.Now()

	o.logger.InfoContext(ctx, "processing payment callback",
		"checkout_request_id", cmd.CheckoutRequestID,
		"merchant_request_id", cmd.MerchantRequestID,
		"result_code", cmd.ResultCode,
	)

	result, err := o.handler.Handle(ctx, cmd)
	duration := time.Since(start).Seconds()

	if err != nil {
		o.metrics.RecordCallback(ctx, "error", duration)
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "payment callback reconciliation failed",
			"error", err,
			"checkout_request_id", cmd.CheckoutRequestID,
			"merchant_request_id", cmd.MerchantRequestID,
			"result_code", cmd.ResultCode,
			"result_desc", cmd.ResultDesc,
		)
		return nil, err
	}

	if result.Duplicate {
		o.metrics.RecordDuplicateCallback(ctx)
		o.logger.InfoContext(ctx, "duplicate callback ignored",
			"checkout_request_id", cmd.CheckoutRequestID,
			"status", string(result.Status),
		)
	}

	o.metrics.RecordCallback(ctx, string(result.Status), duration)
	if !result.Duplicate && result.AppliedAmount.IsPositive() {
		o.metrics.RecordPaymentApplied(ctx, result.AppliedAmount.InexactFloat64())
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("transaction.status", string(result.Status)),
		attribute.Bool("transaction.duplicate", result.Duplicate),
		attribute.String("transaction.applied_amount", result.AppliedAmount.StringFixed(2)),
		attribute.String("order.id", result.OrderID),
	)

	o.logger.InfoContext(ctx, "payment callback processed",
		"checkout_request_id", cmd.CheckoutRequestID,
		"status", string(result.Status),
		"duplicate", result.Duplicate,
		"order_id", result.OrderID,
	)

	telemetry.SetSpanSuccess(span)
	return result, nil
}
