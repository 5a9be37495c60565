package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/shopspring/decimal"
)

// ReconcileCallbackCommand is a decoded gateway result notification.
// Amount and TransactionDate are nil when the payload omitted them; the
// handler falls back to the originally requested amount and the
// processing instant.
type ReconcileCallbackCommand struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            *decimal.Decimal
	ReceiptNumber     string
	TransactionDate   *time.Time
}

// ReconcileResult reports what reconciliation did with the callback.
type ReconcileResult struct {
	Status        domain.TransactionStatus
	Duplicate     bool
	AppliedAmount decimal.Decimal
	OrderID       string
}

// ReconcileHandler is the contract the callback endpoint depends on.
type ReconcileHandler interface {
	Handle(ctx context.Context, cmd ReconcileCallbackCommand) (*ReconcileResult, error)
}

// ReconcileCallbackCommandHandler applies a callback's monetary effect
// exactly once despite at-least-once delivery from the gateway:
// correlation-id lookup under a row lock plus the applied_to_invoice
// gate.
type ReconcileCallbackCommandHandler struct {
	runner ports.TransactionRunner
	events ports.EventBus
	now    func() time.Time
}

func NewReconcileCallbackCommandHandler(runner ports.TransactionRunner, events ports.EventBus) *ReconcileCallbackCommandHandler {
	return &ReconcileCallbackCommandHandler{
		runner: runner,
		events: events,
		now:    time.Now,
	}
}

func (h *ReconcileCallbackCommandHandler) Handle(ctx context.Context, cmd ReconcileCallbackCommand) (*ReconcileResult, error) {
	correlationID := cmd.CheckoutRequestID
	if correlationID == "" {
		correlationID = cmd.MerchantRequestID
	}
	if correlationID == "" {
		return nil, ports.ErrMalformedCallback
	}

	var result ReconcileResult
	err := h.runner.WithLockedTransaction(ctx, correlationID, func(ctx context.Context, store ports.ReconciliationStore) error {
		txn := store.Transaction()

		// Idempotency guard. Must run before any monetary mutation:
		// gateways routinely retry webhook delivery.
		if txn.AppliedToInvoice {
			result = ReconcileResult{Status: txn.Status, Duplicate: true, AppliedAmount: txn.AppliedAmount}
			if txn.OrderID != nil {
				result.OrderID = *txn.OrderID
			}
			if cmd.ResultCode == 0 && txn.Status != domain.TransactionSuccessful {
				txn.Status = domain.TransactionSuccessful
				result.Status = txn.Status
				return store.SaveTransaction(ctx, txn)
			}
			return nil
		}

		txnDate := h.now()
		if cmd.TransactionDate != nil {
			txnDate = *cmd.TransactionDate
		}
		txn.TransactionDate = &txnDate
		if cmd.ReceiptNumber != "" {
			receipt := cmd.ReceiptNumber
			txn.ReceiptNumber = &receipt
		}
		code := strconv.Itoa(cmd.ResultCode)
		desc := cmd.ResultDesc
		txn.ResponseCode = &code
		txn.ResponseDescription = &desc

		if cmd.ResultCode != 0 {
			txn.Status = domain.TransactionFailed
			if txn.OrderID != nil {
				if err := h.failOrder(ctx, store, *txn.OrderID, cmd.ResultDesc); err != nil {
					return err
				}
				result.OrderID = *txn.OrderID
			}
			result.Status = txn.Status
			return store.SaveTransaction(ctx, txn)
		}

		txn.Status = domain.TransactionSuccessful
		if txn.OrderID != nil {
			amount := txn.Amount
			if cmd.Amount != nil {
				amount = *cmd.Amount
			}
			if err := h.applyToOrder(ctx, store, txn, amount); err != nil {
				return err
			}
			result.AppliedAmount = amount
			result.OrderID = *txn.OrderID
		}
		result.Status = txn.Status
		return store.SaveTransaction(ctx, txn)
	})
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, fmt.Errorf("%w: correlation_id=%s", ports.ErrUnknownTransaction, correlationID)
		}
		return nil, err
	}

	return &result, nil
}

func (h *ReconcileCallbackCommandHandler) failOrder(ctx context.Context, store ports.ReconciliationStore, orderID, reason string) error {
	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order for failed callback: %w", err)
	}
	if order.IsTerminal() {
		return nil
	}
	order.Status = domain.OrderFailed
	if err := store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}
	_ = h.events.PublishOrderFailed(ctx, orderID, reason)
	return nil
}

// applyToOrder applies the paid amount to the order, mirrors the new
// figures onto the order's invoice, and sets the idempotency fields.
// All of it commits atomically with the transaction row update.
func (h *ReconcileCallbackCommandHandler) applyToOrder(ctx context.Context, store ports.ReconciliationStore, txn *domain.PaymentTransaction, amount decimal.Decimal) error {
	order, err := store.GetOrderForUpdate(ctx, *txn.OrderID)
	if err != nil {
		return fmt.Errorf("load order for payment: %w", err)
	}

	if err := order.ApplyPayment(amount); err != nil {
		return err
	}
	if err := store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("save order payment: %w", err)
	}

	invoice, err := h.findOrCreateInvoice(ctx, store, order)
	if err != nil {
		return err
	}

	invoice.AmountPaid = order.PaidAmount
	invoice.Recalculate(h.now())
	if err := store.SaveInvoiceAmounts(ctx, invoice); err != nil {
		return fmt.Errorf("save invoice amounts: %w", err)
	}

	txn.AppliedToInvoice = true
	txn.AppliedAmount = amount

	_ = h.events.PublishPaymentApplied(ctx, order.ID, amount.StringFixed(2))
	return nil
}

// findOrCreateInvoice locates the order's invoice, creating one only if
// it is genuinely missing. A concurrent creation surfaces as
// ErrDuplicateInvoice and resolves to the winner's row.
func (h *ReconcileCallbackCommandHandler) findOrCreateInvoice(ctx context.Context, store ports.ReconciliationStore, order *domain.Order) (*domain.Invoice, error) {
	number := domain.InvoiceNumber(order.Reference)

	invoice, err := store.GetInvoiceByNumber(ctx, number)
	if err == nil {
		return invoice, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("load invoice %s: %w", number, err)
	}

	items, err := store.OrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load order items for invoice: %w", err)
	}

	built, builtItems := domain.BuildInvoice(*order, items, h.now())
	if err := store.CreateInvoice(ctx, built, builtItems); err != nil {
		if errors.Is(err, ports.ErrDuplicateInvoice) {
			return store.GetInvoiceByNumber(ctx, number)
		}
		return nil, fmt.Errorf("create invoice %s: %w", number, err)
	}
	return &built, nil
}
