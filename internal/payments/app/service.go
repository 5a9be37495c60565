package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukasoft/pos/internal/payments/app/commands"
	"github.com/dukasoft/pos/internal/payments/app/queries"
	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/metrics"
	"github.com/dukasoft/pos/internal/payments/ports"
)

// Service bundles the payment lifecycle use cases exposed over HTTP.
type Service struct {
	checkoutHandler     commands.CheckoutHandler
	applyPaymentHandler commands.ApplyPaymentHandler
	initiatePushHandler commands.InitiatePushHandler
	reconcileHandler    commands.ReconcileHandler
	sweepHandler        commands.SweepHandler
	paymentStatusQuery  *queries.GetPaymentStatusQueryHandler
	orderQuery          *queries.GetOrderQueryHandler
	metrics             *metrics.Metrics
	sweepTimeout        time.Duration
}

// NewService wires required dependencies.
func NewService(
	orders ports.OrderRepository,
	invoices ports.InvoiceRepository,
	transactions ports.TransactionRepository,
	runner ports.TransactionRunner,
	gateway ports.PaymentGateway,
	events ports.EventBus,
	logger *slog.Logger,
	m *metrics.Metrics,
	sweepTimeout time.Duration,
) *Service {
	reconcileCore := commands.NewReconcileCallbackCommandHandler(runner, events)
	pushCore := commands.NewInitiatePushPaymentCommandHandler(orders, transactions, gateway, events)

	return &Service{
		checkoutHandler:     commands.NewCheckoutCommandHandler(orders, invoices),
		applyPaymentHandler: commands.NewApplyPaymentCommandHandler(orders, events),
		initiatePushHandler: commands.NewObservableInitiatePushHandler(pushCore, logger, m),
		reconcileHandler:    commands.NewObservableReconcileHandler(reconcileCore, logger, m),
		sweepHandler:        commands.NewSweepTimeoutsCommandHandler(transactions, runner, events, logger),
		paymentStatusQuery:  queries.NewGetPaymentStatusQueryHandler(transactions, orders),
		orderQuery:          queries.NewGetOrderQueryHandler(orders),
		metrics:             m,
		sweepTimeout:        sweepTimeout,
	}
}

// Checkout creates a completed order with items and its invoice.
func (s *Service) Checkout(ctx context.Context, cmd commands.CheckoutCommand) (*commands.CheckoutResult, error) {
	return s.checkoutHandler.Handle(ctx, cmd)
}

// GetOrder retrieves an order with its line items.
func (s *Service) GetOrder(ctx context.Context, id string) (*queries.OrderView, error) {
	return s.orderQuery.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// ApplyManualPayment records a manual top-up against an order.
func (s *Service) ApplyManualPayment(ctx context.Context, cmd commands.ApplyPaymentCommand) (*domain.Order, error) {
	return s.applyPaymentHandler.Handle(ctx, cmd)
}

// InitiatePushPayment submits an STK push for an order.
func (s *Service) InitiatePushPayment(ctx context.Context, cmd commands.InitiatePushPaymentCommand) (*commands.InitiatePushPaymentResult, error) {
	return s.initiatePushHandler.Handle(ctx, cmd)
}

// ReconcileCallback processes a gateway result notification.
func (s *Service) ReconcileCallback(ctx context.Context, cmd commands.ReconcileCallbackCommand) (*commands.ReconcileResult, error) {
	return s.reconcileHandler.Handle(ctx, cmd)
}

// SweepTimeouts fails stale pending transactions. Safe to run
// redundantly.
func (s *Service) SweepTimeouts(ctx context.Context) (int, error) {
	count, err := s.sweepHandler.Handle(ctx, commands.SweepTimeoutsCommand{Timeout: s.sweepTimeout})
	if err == nil {
		s.metrics.RecordSwept(ctx, count)
	}
	return count, err
}

// GetPaymentStatus looks up a transaction by checkout correlation id,
// sweeping stale pending transactions first so a dead prompt is
// reported as failed rather than eternally pending.
func (s *Service) GetPaymentStatus(ctx context.Context, checkoutRequestID string) (*queries.PaymentStatusView, error) {
	// Best effort; the inquiry itself still proceeds on sweep failure.
	_, _ = s.SweepTimeouts(ctx)
	return s.paymentStatusQuery.Handle(ctx, queries.GetPaymentStatusQuery{CheckoutRequestID: checkoutRequestID})
}
