package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukasoft/pos/internal/payments/adapters/memory"
	"github.com/dukasoft/pos/internal/payments/app/commands"
	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/shopspring/decimal"
)

type mockEventBus struct {
	publishPaymentAppliedFn func(ctx context.Context, orderID string, amount string) error
	publishOrderFailedFn    func(ctx context.Context, orderID string, reason string) error
}

func (m *mockEventBus) PublishPushPaymentInitiated(ctx context.Context, checkoutRequestID string) error {
	return nil
}

func (m *mockEventBus) PublishPaymentApplied(ctx context.Context, orderID string, amount string) error {
	if m.publishPaymentAppliedFn != nil {
		return m.publishPaymentAppliedFn(ctx, orderID, amount)
	}
	return nil
}

func (m *mockEventBus) PublishOrderFailed(ctx context.Context, orderID string, reason string) error {
	if m.publishOrderFailedFn != nil {
		return m.publishOrderFailedFn(ctx, orderID, reason)
	}
	return nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

// seedOrderWithTransaction stores a completed order with one line item
// and a pending push transaction against it.
func seedOrderWithTransaction(t *testing.T, store *memory.Store, grandTotal, txnAmount string) (domain.Order, domain.PaymentTransaction) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	order := domain.Order{
		ID:            "order-1",
		Reference:     "ORD-1",
		Source:        "pos",
		Status:        domain.OrderCompleted,
		PaymentMethod: domain.MethodMobileMoney,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	item := domain.OrderItem{
		ID:        "item-1",
		OrderID:   order.ID,
		ProductID: "p1",
		Quantity:  1,
		UnitCost:  dec(t, grandTotal),
	}
	item.CalculateTotals()
	order.UpdateTotals([]domain.OrderItem{item})

	if err := store.Create(ctx, order, []domain.OrderItem{item}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	orderID := order.ID
	txn := domain.PaymentTransaction{
		ID:                "txn-1",
		OrderID:           &orderID,
		PhoneNumber:       "254712345678",
		Amount:            dec(t, txnAmount),
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "cr-1",
		Status:            domain.TransactionPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := store.TransactionStore().Create(ctx, txn); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	return order, txn
}

func successCallback(amount string) commands.ReconcileCallbackCommand {
	date := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)
	cmd := commands.ReconcileCallbackCommand{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "cr-1",
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		ReceiptNumber:     "QK12XYZ789",
		TransactionDate:   &date,
	}
	if amount != "" {
		d, _ := decimal.NewFromString(amount)
		cmd.Amount = &d
	}
	return cmd
}

func TestReconcileCallbackSuccess(t *testing.T) {
	t.Run("applies full payment to order and invoice", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "250.00")
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		result, err := handler.Handle(context.Background(), successCallback("250.00"))
		if err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		if result.Status != domain.TransactionSuccessful {
			t.Errorf("Status = %s, want successful", result.Status)
		}
		if result.Duplicate {
			t.Error("first delivery flagged as duplicate")
		}
		if got := result.AppliedAmount.StringFixed(2); got != "250.00" {
			t.Errorf("AppliedAmount = %s, want 250.00", got)
		}

		updated, err := store.GetByID(context.Background(), order.ID)
		if err != nil {
			t.Fatalf("reload order: %v", err)
		}
		if updated.PaymentStatus != domain.PaymentPaid {
			t.Errorf("order PaymentStatus = %s, want paid", updated.PaymentStatus)
		}
		if got := updated.DueAmount.StringFixed(2); got != "0.00" {
			t.Errorf("order DueAmount = %s, want 0.00", got)
		}

		invoice, err := store.InvoiceStore().GetByNumber(context.Background(), domain.InvoiceNumber(order.Reference))
		if err != nil {
			t.Fatalf("invoice not created: %v", err)
		}
		if invoice.Status != domain.InvoicePaid {
			t.Errorf("invoice Status = %s, want paid", invoice.Status)
		}
		if !invoice.AmountPaid.Equal(updated.PaidAmount) {
			t.Errorf("invoice AmountPaid %s does not mirror order PaidAmount %s", invoice.AmountPaid, updated.PaidAmount)
		}

		txn, err := store.TransactionStore().FindByCorrelation(context.Background(), "cr-1")
		if err != nil {
			t.Fatalf("reload transaction: %v", err)
		}
		if !txn.AppliedToInvoice {
			t.Error("AppliedToInvoice not set")
		}
		if txn.ReceiptNumber == nil || *txn.ReceiptNumber != "QK12XYZ789" {
			t.Errorf("ReceiptNumber = %v, want QK12XYZ789", txn.ReceiptNumber)
		}
		if txn.TransactionDate == nil {
			t.Error("TransactionDate not recorded")
		}
	})

	t.Run("partial payment leaves order partial", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "100.00")
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		if _, err := handler.Handle(context.Background(), successCallback("100.00")); err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		updated, _ := store.GetByID(context.Background(), order.ID)
		if updated.PaymentStatus != domain.PaymentPartial {
			t.Errorf("PaymentStatus = %s, want partial", updated.PaymentStatus)
		}
		if got := updated.DueAmount.StringFixed(2); got != "150.00" {
			t.Errorf("DueAmount = %s, want 150.00", got)
		}
	})

	t.Run("overpayment clamps due amount and reports paid", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "300.00")
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		if _, err := handler.Handle(context.Background(), successCallback("300.00")); err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		updated, _ := store.GetByID(context.Background(), order.ID)
		if got := updated.PaidAmount.StringFixed(2); got != "300.00" {
			t.Errorf("PaidAmount = %s, want 300.00", got)
		}
		if got := updated.DueAmount.StringFixed(2); got != "0.00" {
			t.Errorf("DueAmount = %s, want 0.00", got)
		}
		if updated.PaymentStatus != domain.PaymentPaid {
			t.Errorf("PaymentStatus = %s, want paid", updated.PaymentStatus)
		}
	})

	t.Run("missing callback amount falls back to requested amount", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "250.00")
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		result, err := handler.Handle(context.Background(), successCallback(""))
		if err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		if got := result.AppliedAmount.StringFixed(2); got != "250.00" {
			t.Errorf("AppliedAmount = %s, want requested 250.00", got)
		}
		updated, _ := store.GetByID(context.Background(), order.ID)
		if updated.PaymentStatus != domain.PaymentPaid {
			t.Errorf("PaymentStatus = %s, want paid", updated.PaymentStatus)
		}
	})

	t.Run("missing transaction date falls back to processing time", func(t *testing.T) {
		store := memory.NewStore()
		seedOrderWithTransaction(t, store, "250.00", "250.00")
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		cmd := successCallback("250.00")
		cmd.TransactionDate = nil

		if _, err := handler.Handle(context.Background(), cmd); err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		txn, _ := store.TransactionStore().FindByCorrelation(context.Background(), "cr-1")
		if txn.TransactionDate == nil {
			t.Fatal("expected a fallback transaction date")
		}
		if time.Since(*txn.TransactionDate) > time.Minute {
			t.Errorf("fallback date %v is not recent", *txn.TransactionDate)
		}
	})

	t.Run("matches by merchant request id when checkout id missing", func(t *testing.T) {
		store := memory.NewStore()
		seedOrderWithTransaction(t, store, "250.00", "250.00")
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		cmd := successCallback("250.00")
		cmd.CheckoutRequestID = ""

		result, err := handler.Handle(context.Background(), cmd)
		if err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}
		if result.Status != domain.TransactionSuccessful {
			t.Errorf("Status = %s, want successful", result.Status)
		}
	})

	t.Run("publishes payment applied event", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "250.00")

		var gotOrderID, gotAmount string
		events := &mockEventBus{
			publishPaymentAppliedFn: func(_ context.Context, orderID string, amount string) error {
				gotOrderID, gotAmount = orderID, amount
				return nil
			},
		}
		handler := commands.NewReconcileCallbackCommandHandler(store, events)

		if _, err := handler.Handle(context.Background(), successCallback("250.00")); err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}
		if gotOrderID != order.ID || gotAmount != "250.00" {
			t.Errorf("event published with (%s, %s)", gotOrderID, gotAmount)
		}
	})
}

func TestReconcileCallbackIdempotency(t *testing.T) {
	t.Run("second delivery is acknowledged without reapplying", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "250.00")
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		first, err := handler.Handle(context.Background(), successCallback("250.00"))
		if err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		second, err := handler.Handle(context.Background(), successCallback("250.00"))
		if err != nil {
			t.Fatalf("second delivery failed: %v", err)
		}

		if first.Duplicate {
			t.Error("first delivery flagged duplicate")
		}
		if !second.Duplicate {
			t.Error("second delivery not flagged duplicate")
		}

		updated, _ := store.GetByID(context.Background(), order.ID)
		if got := updated.PaidAmount.StringFixed(2); got != "250.00" {
			t.Errorf("PaidAmount = %s after redelivery, want 250.00", got)
		}

		invoice, _ := store.InvoiceStore().GetByNumber(context.Background(), domain.InvoiceNumber(order.Reference))
		if got := invoice.AmountPaid.StringFixed(2); got != "250.00" {
			t.Errorf("invoice AmountPaid = %s after redelivery, want 250.00", got)
		}
	})

	t.Run("five deliveries apply the money exactly once", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "500.00", "100.00")
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		for i := 0; i < 5; i++ {
			if _, err := handler.Handle(context.Background(), successCallback("100.00")); err != nil {
				t.Fatalf("delivery %d failed: %v", i+1, err)
			}
		}

		updated, _ := store.GetByID(context.Background(), order.ID)
		if got := updated.PaidAmount.StringFixed(2); got != "100.00" {
			t.Errorf("PaidAmount = %s after 5 deliveries, want 100.00", got)
		}
		if updated.PaymentStatus != domain.PaymentPartial {
			t.Errorf("PaymentStatus = %s, want partial", updated.PaymentStatus)
		}
	})
}

func TestReconcileCallbackFailure(t *testing.T) {
	failedCallback := func() commands.ReconcileCallbackCommand {
		return commands.ReconcileCallbackCommand{
			MerchantRequestID: "mr-1",
			CheckoutRequestID: "cr-1",
			ResultCode:        1032,
			ResultDesc:        "Request cancelled by user",
		}
	}

	t.Run("marks transaction and order failed", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "250.00")

		var failedOrderID, failedReason string
		events := &mockEventBus{
			publishOrderFailedFn: func(_ context.Context, orderID string, reason string) error {
				failedOrderID, failedReason = orderID, reason
				return nil
			},
		}
		handler := commands.NewReconcileCallbackCommandHandler(store, events)

		result, err := handler.Handle(context.Background(), failedCallback())
		if err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}
		if result.Status != domain.TransactionFailed {
			t.Errorf("Status = %s, want failed", result.Status)
		}

		updated, _ := store.GetByID(context.Background(), order.ID)
		if updated.Status != domain.OrderFailed {
			t.Errorf("order Status = %s, want failed", updated.Status)
		}
		if !updated.PaidAmount.IsZero() {
			t.Errorf("PaidAmount = %s, want 0", updated.PaidAmount)
		}
		if failedOrderID != order.ID || failedReason != "Request cancelled by user" {
			t.Errorf("order failed event = (%s, %s)", failedOrderID, failedReason)
		}

		txn, _ := store.TransactionStore().FindByCorrelation(context.Background(), "cr-1")
		if txn.ResponseCode == nil || *txn.ResponseCode != "1032" {
			t.Errorf("ResponseCode = %v, want 1032", txn.ResponseCode)
		}
	})

	t.Run("terminal order is not resurrected or re-failed", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "250.00")

		order.Status = domain.OrderCanceled
		if err := store.Update(context.Background(), order); err != nil {
			t.Fatalf("cancel order: %v", err)
		}

		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})
		if _, err := handler.Handle(context.Background(), failedCallback()); err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		updated, _ := store.GetByID(context.Background(), order.ID)
		if updated.Status != domain.OrderCanceled {
			t.Errorf("order Status = %s, want canceled untouched", updated.Status)
		}
	})

}

func TestReconcileCallbackErrors(t *testing.T) {
	t.Run("unknown correlation id", func(t *testing.T) {
		store := memory.NewStore()
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		_, err := handler.Handle(context.Background(), successCallback("100.00"))
		if !errors.Is(err, ports.ErrUnknownTransaction) {
			t.Errorf("expected ErrUnknownTransaction, got %v", err)
		}
	})

	t.Run("missing both correlation ids", func(t *testing.T) {
		store := memory.NewStore()
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		_, err := handler.Handle(context.Background(), commands.ReconcileCallbackCommand{ResultCode: 0})
		if !errors.Is(err, ports.ErrMalformedCallback) {
			t.Errorf("expected ErrMalformedCallback, got %v", err)
		}
	})
}

func TestReconcileCallbackInvoiceCreation(t *testing.T) {
	t.Run("creates the invoice when the order has none", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "250.00")
		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})

		if _, err := handler.Handle(context.Background(), successCallback("250.00")); err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		invoice, err := store.InvoiceStore().GetByNumber(context.Background(), domain.InvoiceNumber(order.Reference))
		if err != nil {
			t.Fatalf("invoice not created: %v", err)
		}
		if !invoice.Amount.Equal(order.GrandTotal) {
			t.Errorf("invoice Amount = %s, want %s", invoice.Amount, order.GrandTotal)
		}
	})

	t.Run("reuses an existing invoice", func(t *testing.T) {
		store := memory.NewStore()
		order, _ := seedOrderWithTransaction(t, store, "250.00", "250.00")

		items, _ := store.ListItems(context.Background(), order.ID)
		existing, existingItems := domain.BuildInvoice(order, items, time.Now().UTC())
		if err := store.InvoiceStore().Create(context.Background(), existing, existingItems); err != nil {
			t.Fatalf("seed invoice: %v", err)
		}

		handler := commands.NewReconcileCallbackCommandHandler(store, &mockEventBus{})
		if _, err := handler.Handle(context.Background(), successCallback("250.00")); err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		invoice, _ := store.InvoiceStore().GetByNumber(context.Background(), existing.Number)
		if invoice.ID != existing.ID {
			t.Errorf("a second invoice replaced the existing one")
		}
		if invoice.Status != domain.InvoicePaid {
			t.Errorf("invoice Status = %s, want paid", invoice.Status)
		}
	})
}
