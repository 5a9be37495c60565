package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus captures the lifecycle of a sales order.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderCompleted OrderStatus = "completed"
	OrderCanceled  OrderStatus = "canceled"
	OrderFailed    OrderStatus = "failed"
)

// PaymentStatus is a pure function of (paid_amount, grand_total); see
// Order.recalculatePayment.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
	// PaymentOverpaid is declared for completeness; the three-way rule
	// never produces it.
	PaymentOverpaid PaymentStatus = "overpaid"
)

// PaymentMethod identifies how an order is settled.
type PaymentMethod string

const (
	MethodCash        PaymentMethod = "cash"
	MethodMobileMoney PaymentMethod = "mobile_money"
)

// Order represents a sale with its money totals and payment state.
type Order struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference"`
	CustomerID    *string         `json:"customer_id,omitempty"`
	BillerID      *string         `json:"biller_id,omitempty"`
	Source        string          `json:"source"`
	Status        OrderStatus     `json:"status"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	DueAmount     decimal.Decimal `json:"due_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if strings.TrimSpace(o.Reference) == "" {
		return errors.New("reference is required")
	}
	if strings.TrimSpace(o.Source) == "" {
		return errors.New("source is required")
	}
	return nil
}

// IsTerminal indicates whether the order can no longer move forward.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case OrderCanceled, OrderFailed:
		return true
	default:
		return false
	}
}

// UpdateTotals recomputes grand_total from line items, then due_amount
// and payment_status from the invariants:
//
//	due_amount = max(grand_total - paid_amount, 0)
//	payment_status = paid | partial | unpaid
func (o *Order) UpdateTotals(items []OrderItem) {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalCost)
	}
	o.GrandTotal = total
	o.recalculatePayment()
}

// ApplyPayment adds amount to paid_amount and recomputes the derived
// fields. The amount must not be negative; callers that enforce a
// due-amount ceiling do so before calling (the reconciler deliberately
// does not, because the money has already moved on the gateway side).
func (o *Order) ApplyPayment(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New("payment amount must not be negative")
	}
	o.PaidAmount = o.PaidAmount.Add(amount)
	o.recalculatePayment()
	return nil
}

func (o *Order) recalculatePayment() {
	due := o.GrandTotal.Sub(o.PaidAmount)
	if due.IsNegative() {
		due = decimal.Zero
	}
	o.DueAmount = due

	switch {
	case o.PaidAmount.GreaterThanOrEqual(o.GrandTotal):
		o.PaymentStatus = PaymentPaid
	case o.PaidAmount.IsPositive():
		o.PaymentStatus = PaymentPartial
	default:
		o.PaymentStatus = PaymentUnpaid
	}
}

// OrderItem is one product line on an order. Exactly one item exists
// per (order, product) pair.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Discount  decimal.Decimal `json:"discount"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// Validate ensures the line item adheres to business constraints.
func (i OrderItem) Validate() error {
	if strings.TrimSpace(i.ProductID) == "" {
		return errors.New("product_id is required")
	}
	if i.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if i.UnitCost.IsNegative() {
		return errors.New("unit_cost must not be negative")
	}
	return nil
}

var oneHundred = decimal.NewFromInt(100)

// CalculateTotals computes tax_amount and total_cost, rounded to two
// decimal places:
//
//	tax_amount = (unit_cost * quantity - discount) * tax_rate / 100
//	total_cost = (unit_cost * quantity - discount) + tax_amount
func (i *OrderItem) CalculateTotals() {
	subtotal := i.UnitCost.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.Discount)
	i.TaxAmount = subtotal.Mul(i.TaxRate).Div(oneHundred).Round(2)
	i.TotalCost = subtotal.Add(i.TaxAmount).Round(2)
}
