package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutItem is one product line in a checkout request.
type CheckoutItem struct {
	ProductID string
	Quantity  int
	UnitCost  decimal.Decimal
	Discount  decimal.Decimal
	TaxRate   decimal.Decimal
}

// CheckoutCommand creates a completed order with its line items and the
// derived invoice. PaidAmount, when set, records money collected at the
// till immediately.
type CheckoutCommand struct {
	Reference     string
	CustomerID    *string
	BillerID      *string
	Source        string
	PaymentMethod domain.PaymentMethod
	Items         []CheckoutItem
	PaidAmount    *decimal.Decimal
}

func (c CheckoutCommand) Validate() error {
	if strings.TrimSpace(c.Source) == "" {
		return errors.New("source is required")
	}
	if len(c.Items) == 0 {
		return errors.New("order must include at least one item")
	}
	seen := make(map[string]struct{}, len(c.Items))
	for i, item := range c.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("item #%d: product_id is required", i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item #%d: quantity must be positive", i+1)
		}
		if item.UnitCost.IsNegative() {
			return fmt.Errorf("item #%d: unit_cost must not be negative", i+1)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("item #%d: duplicate product %s", i+1, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// CheckoutResult reports the created order and invoice.
type CheckoutResult struct {
	Order     *domain.Order
	InvoiceNo string
}

type CheckoutHandler interface {
	Handle(ctx context.Context, cmd CheckoutCommand) (*CheckoutResult, error)
}

type CheckoutCommandHandler struct {
	orders   ports.OrderRepository
	invoices ports.InvoiceRepository
	now      func() time.Time
}

func NewCheckoutCommandHandler(orders ports.OrderRepository, invoices ports.InvoiceRepository) *CheckoutCommandHandler {
	return &CheckoutCommandHandler{
		orders:   orders,
		invoices: invoices,
		now:      time.Now,
	}
}

func (h *CheckoutCommandHandler) Handle(ctx context.Context, cmd CheckoutCommand) (*CheckoutResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.now().UTC()
	reference := strings.TrimSpace(cmd.Reference)
	if reference == "" {
		reference = generateOrderReference(now)
	}

	method := cmd.PaymentMethod
	if method == "" {
		method = domain.MethodCash
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		Reference:     reference,
		CustomerID:    cmd.CustomerID,
		BillerID:      cmd.BillerID,
		Source:        cmd.Source,
		Status:        domain.OrderCompleted,
		PaymentStatus: domain.PaymentUnpaid,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, in := range cmd.Items {
		item := domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitCost:  in.UnitCost,
			Discount:  in.Discount,
			TaxRate:   in.TaxRate,
		}
		item.CalculateTotals()
		items = append(items, item)
	}
	order.UpdateTotals(items)

	if cmd.PaidAmount != nil {
		if cmd.PaidAmount.IsNegative() {
			return nil, errors.New("paid_amount must not be negative")
		}
		if err := order.ApplyPayment(*cmd.PaidAmount); err != nil {
			return nil, err
		}
	}

	if err := h.orders.Create(ctx, order, items); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	invoice, invoiceItems := domain.BuildInvoice(order, items, now)
	if err := h.invoices.Create(ctx, invoice, invoiceItems); err != nil {
		// An existing invoice for this order is success, not failure.
		if !errors.Is(err, ports.ErrDuplicateInvoice) {
			return nil, fmt.Errorf("create invoice: %w", err)
		}
	}

	return &CheckoutResult{Order: &order, InvoiceNo: invoice.Number}, nil
}

func generateOrderReference(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102-150405"), rand.Intn(9000)+1000)
}
