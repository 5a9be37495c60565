package ports

import (
	"context"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
)

// OrderRepository exposes persistence operations for orders and their
// line items.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order, items []domain.OrderItem) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByReference(ctx context.Context, reference string) (*domain.Order, error)
	ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	// Update persists the mutable money and status fields of an order.
	Update(ctx context.Context, order domain.Order) error
	// UpdateLocked loads the order under a row lock, applies fn and
	// persists the result as one transaction. Paths mutating
	// paid_amount must use it; a plain read-modify-write would erase a
	// reconciliation committing in between.
	UpdateLocked(ctx context.Context, id string, fn func(order *domain.Order) error) error
}

// InvoiceRepository exposes persistence operations for invoices.
type InvoiceRepository interface {
	// Create inserts an invoice and its items. Returns
	// ErrDuplicateInvoice when an invoice with the same number exists;
	// the unique constraint is the race-resolution signal.
	Create(ctx context.Context, invoice domain.Invoice, items []domain.InvoiceItem) error
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	// UpdateAmounts persists only amount, amount_paid, amount_due and
	// status.
	UpdateAmounts(ctx context.Context, invoice domain.Invoice) error
}

// TransactionRepository exposes persistence operations for push-payment
// transactions.
type TransactionRepository interface {
	Create(ctx context.Context, txn domain.PaymentTransaction) error
	// FindByCorrelation matches either the checkout-request or the
	// merchant-request identifier exactly.
	FindByCorrelation(ctx context.Context, correlationID string) (*domain.PaymentTransaction, error)
	// ListStalePending returns transactions still pending that were
	// created before the cutoff.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]domain.PaymentTransaction, error)
	Update(ctx context.Context, txn domain.PaymentTransaction) error
}
