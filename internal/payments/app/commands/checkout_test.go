package commands_test

import (
	"context"
	"testing"

	"github.com/dukasoft/pos/internal/payments/adapters/memory"
	"github.com/dukasoft/pos/internal/payments/app/commands"
	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/shopspring/decimal"
)

func decFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCheckout(t *testing.T) {
	item := func(productID string, qty int, cost string) commands.CheckoutItem {
		return commands.CheckoutItem{
			ProductID: productID,
			Quantity:  qty,
			UnitCost:  decFromString(cost),
		}
	}

	t.Run("creates completed order with invoice", func(t *testing.T) {
		store := memory.NewStore()
		handler := commands.NewCheckoutCommandHandler(store, store.InvoiceStore())

		result, err := handler.Handle(context.Background(), commands.CheckoutCommand{
			Source: "pos",
			Items: []commands.CheckoutItem{
				item("p1", 2, "100.00"),
				item("p2", 1, "50.00"),
			},
		})
		if err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		if result.Order.Status != domain.OrderCompleted {
			t.Errorf("order Status = %s, want completed", result.Order.Status)
		}
		if got := result.Order.GrandTotal.StringFixed(2); got != "250.00" {
			t.Errorf("GrandTotal = %s, want 250.00", got)
		}
		if result.Order.PaymentStatus != domain.PaymentUnpaid {
			t.Errorf("PaymentStatus = %s, want unpaid", result.Order.PaymentStatus)
		}
		if result.Order.Reference == "" {
			t.Error("expected a generated order reference")
		}
		if result.InvoiceNo != domain.InvoiceNumber(result.Order.Reference) {
			t.Errorf("InvoiceNo = %s, want %s", result.InvoiceNo, domain.InvoiceNumber(result.Order.Reference))
		}

		invoice, err := store.InvoiceStore().GetByNumber(context.Background(), result.InvoiceNo)
		if err != nil {
			t.Fatalf("invoice not persisted: %v", err)
		}
		if !invoice.Amount.Equal(result.Order.GrandTotal) {
			t.Errorf("invoice Amount = %s, want %s", invoice.Amount, result.Order.GrandTotal)
		}

		items, err := store.ListItems(context.Background(), result.Order.ID)
		if err != nil {
			t.Fatalf("list items: %v", err)
		}
		if len(items) != 2 {
			t.Errorf("persisted %d items, want 2", len(items))
		}
	})

	t.Run("records till payment at creation", func(t *testing.T) {
		store := memory.NewStore()
		handler := commands.NewCheckoutCommandHandler(store, store.InvoiceStore())

		paid := decFromString("250.00")
		result, err := handler.Handle(context.Background(), commands.CheckoutCommand{
			Source:     "pos",
			Items:      []commands.CheckoutItem{item("p1", 1, "250.00")},
			PaidAmount: &paid,
		})
		if err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}

		if result.Order.PaymentStatus != domain.PaymentPaid {
			t.Errorf("PaymentStatus = %s, want paid", result.Order.PaymentStatus)
		}

		invoice, _ := store.InvoiceStore().GetByNumber(context.Background(), result.InvoiceNo)
		if invoice.Status != domain.InvoicePaid {
			t.Errorf("invoice Status = %s, want paid", invoice.Status)
		}
	})

	t.Run("rejects empty source", func(t *testing.T) {
		store := memory.NewStore()
		handler := commands.NewCheckoutCommandHandler(store, store.InvoiceStore())

		_, err := handler.Handle(context.Background(), commands.CheckoutCommand{
			Items: []commands.CheckoutItem{item("p1", 1, "10.00")},
		})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("rejects empty items", func(t *testing.T) {
		store := memory.NewStore()
		handler := commands.NewCheckoutCommandHandler(store, store.InvoiceStore())

		_, err := handler.Handle(context.Background(), commands.CheckoutCommand{Source: "pos"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("rejects duplicate products", func(t *testing.T) {
		store := memory.NewStore()
		handler := commands.NewCheckoutCommandHandler(store, store.InvoiceStore())

		_, err := handler.Handle(context.Background(), commands.CheckoutCommand{
			Source: "pos",
			Items: []commands.CheckoutItem{
				item("p1", 1, "10.00"),
				item("p1", 2, "10.00"),
			},
		})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		store := memory.NewStore()
		handler := commands.NewCheckoutCommandHandler(store, store.InvoiceStore())

		_, err := handler.Handle(context.Background(), commands.CheckoutCommand{
			Source: "pos",
			Items:  []commands.CheckoutItem{item("p1", 0, "10.00")},
		})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}
