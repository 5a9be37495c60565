package domain_test

import (
	"testing"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
)

func TestInvoiceNumber(t *testing.T) {
	if got := domain.InvoiceNumber("ORD-20240101-120000-1234"); got != "INV-ORD-20240101-120000-1234" {
		t.Errorf("InvoiceNumber() = %s", got)
	}
}

func TestInvoiceRecalculate(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		amount     string
		amountPaid string
		dueDate    time.Time
		wantDue    string
		wantStatus domain.InvoiceStatus
	}{
		{"fully paid", "250.00", "250.00", now, "0.00", domain.InvoicePaid},
		{"overpaid still paid", "250.00", "300.00", now, "0.00", domain.InvoicePaid},
		{"unpaid due today stays open", "250.00", "0.00", now, "250.00", domain.InvoiceOpen},
		{"unpaid past due is overdue", "250.00", "0.00", now.AddDate(0, 0, -1), "250.00", domain.InvoiceOverdue},
		{"partial past due is overdue", "250.00", "100.00", now.AddDate(0, 0, -3), "150.00", domain.InvoiceOverdue},
		{"zero amount is paid", "0.00", "0.00", now, "0.00", domain.InvoicePaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := domain.Invoice{
				Amount:     dec(t, tt.amount),
				AmountPaid: dec(t, tt.amountPaid),
				DueDate:    tt.dueDate,
			}
			inv.Recalculate(now)

			if got := inv.AmountDue.StringFixed(2); got != tt.wantDue {
				t.Errorf("AmountDue = %s, want %s", got, tt.wantDue)
			}
			if inv.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", inv.Status, tt.wantStatus)
			}
		})
	}
}

func TestInvoiceItemCalculateTotal(t *testing.T) {
	item := domain.InvoiceItem{
		Quantity: 3,
		Cost:     dec(t, "50.00"),
		Discount: dec(t, "10.00"),
	}
	item.CalculateTotal()

	if got := item.Total.StringFixed(2); got != "140.00" {
		t.Errorf("Total = %s, want 140.00", got)
	}
}

func TestBuildInvoice(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	order := domain.Order{
		ID:        "order-1",
		Reference: "ORD-1",
	}
	items := []domain.OrderItem{
		{OrderID: order.ID, ProductID: "p1", Quantity: 2, UnitCost: dec(t, "100.00"), TaxRate: dec(t, "16")},
		{OrderID: order.ID, ProductID: "p2", Quantity: 1, UnitCost: dec(t, "50.00")},
	}
	for i := range items {
		items[i].CalculateTotals()
	}
	order.UpdateTotals(items)

	t.Run("unpaid order yields open invoice", func(t *testing.T) {
		inv, invItems := domain.BuildInvoice(order, items, now)

		if inv.Number != "INV-ORD-1" {
			t.Errorf("Number = %s, want INV-ORD-1", inv.Number)
		}
		if len(invItems) != 2 {
			t.Fatalf("expected 2 invoice items, got %d", len(invItems))
		}
		if !inv.Amount.Equal(order.GrandTotal) {
			t.Errorf("Amount = %s, want order grand total %s", inv.Amount, order.GrandTotal)
		}
		if inv.Status != domain.InvoiceOpen {
			t.Errorf("Status = %s, want open", inv.Status)
		}
		for _, item := range invItems {
			if item.InvoiceID != inv.ID {
				t.Errorf("item %s not linked to invoice", item.ProductID)
			}
		}
	})

	t.Run("paid order yields paid invoice", func(t *testing.T) {
		paid := order
		if err := paid.ApplyPayment(paid.GrandTotal); err != nil {
			t.Fatalf("ApplyPayment failed: %v", err)
		}

		inv, _ := domain.BuildInvoice(paid, items, now)

		if !inv.AmountPaid.Equal(paid.PaidAmount) {
			t.Errorf("AmountPaid = %s, want %s", inv.AmountPaid, paid.PaidAmount)
		}
		if inv.Status != domain.InvoicePaid {
			t.Errorf("Status = %s, want paid", inv.Status)
		}
		if !inv.AmountDue.IsZero() {
			t.Errorf("AmountDue = %s, want 0", inv.AmountDue)
		}
	})
}
