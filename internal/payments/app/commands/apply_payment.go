package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/shopspring/decimal"
)

// ApplyPaymentCommand is a manual top-up against an order, e.g. a cash
// payment recorded at the till. Unlike the reconciler, this path
// rejects amounts exceeding the due amount before any mutation.
type ApplyPaymentCommand struct {
	OrderID string
	Amount  decimal.Decimal
}

func (c ApplyPaymentCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return errors.New("order_id is required")
	}
	if !c.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

type ApplyPaymentHandler interface {
	Handle(ctx context.Context, cmd ApplyPaymentCommand) (*domain.Order, error)
}

type ApplyPaymentCommandHandler struct {
	orders ports.OrderRepository
	events ports.EventBus
}

func NewApplyPaymentCommandHandler(orders ports.OrderRepository, events ports.EventBus) *ApplyPaymentCommandHandler {
	return &ApplyPaymentCommandHandler{orders: orders, events: events}
}

func (h *ApplyPaymentCommandHandler) Handle(ctx context.Context, cmd ApplyPaymentCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// The due-amount check and the increment run under the order row
	// lock; a callback committing in between would otherwise be erased
	// by this write.
	var updated domain.Order
	err := h.orders.UpdateLocked(ctx, cmd.OrderID, func(order *domain.Order) error {
		remaining := order.GrandTotal.Sub(order.PaidAmount)
		if cmd.Amount.GreaterThan(remaining) {
			return fmt.Errorf("%w: maximum allowed is %s", ports.ErrOverpayment, remaining.StringFixed(2))
		}
		if err := order.ApplyPayment(cmd.Amount); err != nil {
			return err
		}
		order.UpdatedAt = time.Now().UTC()
		updated = *order
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = h.events.PublishPaymentApplied(ctx, updated.ID, cmd.Amount.StringFixed(2))

	return &updated, nil
}
