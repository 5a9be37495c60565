package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus captures the lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft    InvoiceStatus = "draft"
	InvoiceOpen     InvoiceStatus = "open"
	InvoicePaid     InvoiceStatus = "paid"
	InvoiceOverdue  InvoiceStatus = "overdue"
	InvoiceCanceled InvoiceStatus = "canceled"
)

// Invoice mirrors the payment figures of exactly one order. The 1:1
// relationship is enforced by the deterministic invoice number.
type Invoice struct {
	ID         string          `json:"id"`
	Number     string          `json:"invoice_no"`
	CustomerID *string         `json:"customer_id,omitempty"`
	DueDate    time.Time       `json:"due_date"`
	Amount     decimal.Decimal `json:"amount"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	AmountDue  decimal.Decimal `json:"amount_due"`
	Status     InvoiceStatus   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// InvoiceNumber derives the unique invoice number for an order.
func InvoiceNumber(orderReference string) string {
	return "INV-" + orderReference
}

// Recalculate recomputes amount_due and status from the current amount
// and amount_paid:
//
//	amount_due = max(amount - amount_paid, 0)
//	status = paid when amount_paid >= amount, overdue when amount_due > 0
//	and the due date has passed, otherwise open.
func (inv *Invoice) Recalculate(now time.Time) {
	due := inv.Amount.Sub(inv.AmountPaid)
	if due.IsNegative() {
		due = decimal.Zero
	}
	inv.AmountDue = due

	switch {
	case inv.AmountPaid.GreaterThanOrEqual(inv.Amount):
		inv.Status = InvoicePaid
	case inv.AmountDue.IsPositive() && inv.DueDate.Before(truncateToDay(now)):
		inv.Status = InvoiceOverdue
	default:
		inv.Status = InvoiceOpen
	}
}

// UpdateAmounts recomputes amount from invoice items, then the derived
// fields via Recalculate. Persisting only the four changed fields is
// the repository's concern.
func (inv *Invoice) UpdateAmounts(items []InvoiceItem, now time.Time) {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total)
	}
	inv.Amount = total
	inv.Recalculate(now)
}

func truncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// InvoiceItem is a line copied from an order item at invoice creation.
type InvoiceItem struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoice_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Cost      decimal.Decimal `json:"cost"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

// CalculateTotal computes total = (cost * quantity) - discount, rounded
// to two decimal places.
func (i *InvoiceItem) CalculateTotal() {
	i.Total = i.Cost.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.Discount).Round(2)
}

// BuildInvoice derives an invoice and its items from an order. Items
// are copied from the order lines and the invoice amount is first
// computed from them, then overridden by the order's authoritative
// figures: mobile-money payments land on the order before any invoice
// item recomputation would know about them.
func BuildInvoice(order Order, items []OrderItem, now time.Time) (Invoice, []InvoiceItem) {
	inv := Invoice{
		ID:         uuid.NewString(),
		Number:     InvoiceNumber(order.Reference),
		CustomerID: order.CustomerID,
		DueDate:    now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	invItems := make([]InvoiceItem, 0, len(items))
	for _, item := range items {
		line := InvoiceItem{
			ID:        uuid.NewString(),
			InvoiceID: inv.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Cost:      item.UnitCost,
			Discount:  item.Discount,
		}
		line.CalculateTotal()
		invItems = append(invItems, line)
	}

	inv.UpdateAmounts(invItems, now)

	// The order is the source of truth for money actually collected.
	inv.Amount = order.GrandTotal
	inv.AmountPaid = order.PaidAmount
	inv.Recalculate(now)

	return inv, invItems
}
