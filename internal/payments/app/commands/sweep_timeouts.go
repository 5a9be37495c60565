package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
)

// SweepTimeoutsCommand marks pending transactions older than Timeout as
// failed and propagates the failure to their orders.
type SweepTimeoutsCommand struct {
	Timeout time.Duration
}

type SweepHandler interface {
	Handle(ctx context.Context, cmd SweepTimeoutsCommand) (int, error)
}

// SweepTimeoutsCommandHandler is safe to run redundantly: transactions
// that already received a callback are no longer pending, and each
// stale candidate is re-checked under its row lock before mutation so a
// racing callback always wins or loses cleanly.
type SweepTimeoutsCommandHandler struct {
	transactions ports.TransactionRepository
	runner       ports.TransactionRunner
	events       ports.EventBus
	logger       *slog.Logger
	now          func() time.Time
}

func NewSweepTimeoutsCommandHandler(
	transactions ports.TransactionRepository,
	runner ports.TransactionRunner,
	events ports.EventBus,
	logger *slog.Logger,
) *SweepTimeoutsCommandHandler {
	return &SweepTimeoutsCommandHandler{
		transactions: transactions,
		runner:       runner,
		events:       events,
		logger:       logger,
		now:          time.Now,
	}
}

func (h *SweepTimeoutsCommandHandler) Handle(ctx context.Context, cmd SweepTimeoutsCommand) (int, error) {
	cutoff := h.now().Add(-cmd.Timeout)

	stale, err := h.transactions.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale pending transactions: %w", err)
	}

	swept := 0
	for _, candidate := range stale {
		marked, err := h.sweepOne(ctx, candidate, cmd.Timeout)
		if err != nil {
			// One bad record must not abort the sweep of the rest.
			h.logger.ErrorContext(ctx, "failed to sweep stale transaction",
				"error", err,
				"checkout_request_id", candidate.CheckoutRequestID,
			)
			continue
		}
		if marked {
			swept++
		}
	}

	return swept, nil
}

func (h *SweepTimeoutsCommandHandler) sweepOne(ctx context.Context, candidate domain.PaymentTransaction, timeout time.Duration) (bool, error) {
	marked := false
	err := h.runner.WithLockedTransaction(ctx, candidate.CheckoutRequestID, func(ctx context.Context, store ports.ReconciliationStore) error {
		txn := store.Transaction()
		if txn.Status != domain.TransactionPending {
			// A callback arrived between the scan and the lock.
			return nil
		}

		txn.Status = domain.TransactionFailed
		desc := fmt.Sprintf("Transaction timed out after %d minutes", int(timeout.Minutes()))
		txn.ResponseDescription = &desc

		if txn.OrderID != nil {
			order, err := store.GetOrderForUpdate(ctx, *txn.OrderID)
			if err != nil {
				return fmt.Errorf("load order: %w", err)
			}
			if !order.IsTerminal() {
				order.Status = domain.OrderFailed
				if err := store.SaveOrder(ctx, order); err != nil {
					return fmt.Errorf("mark order failed: %w", err)
				}
				_ = h.events.PublishOrderFailed(ctx, order.ID, desc)
				h.logger.InfoContext(ctx, "marked timed-out transaction and order as failed",
					"checkout_request_id", txn.CheckoutRequestID,
					"order_reference", order.Reference,
				)
			}
		}

		if err := store.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		marked = true
		return nil
	})
	return marked, err
}
