package ports

import (
	"context"

	"github.com/dukasoft/pos/internal/payments/domain"
)

// ReconciliationStore is the transactional view handed to a callback
// while the matched payment transaction row is locked. Every mutation
// performed through it commits or rolls back as one unit.
type ReconciliationStore interface {
	// Transaction returns the locked payment transaction.
	Transaction() *domain.PaymentTransaction
	SaveTransaction(ctx context.Context, txn *domain.PaymentTransaction) error

	// GetOrderForUpdate locks the order row for the remainder of the
	// unit of work; paid_amount updates must serialize on it.
	GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error)
	SaveOrder(ctx context.Context, order *domain.Order) error
	OrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)

	GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	// CreateInvoice returns ErrDuplicateInvoice when a concurrent path
	// created the invoice first.
	CreateInvoice(ctx context.Context, invoice domain.Invoice, items []domain.InvoiceItem) error
	SaveInvoiceAmounts(ctx context.Context, invoice *domain.Invoice) error
}

// TransactionRunner executes fn inside a single database transaction
// with the payment transaction matching correlationID locked, which
// serializes concurrent deliveries of the same callback. Returns
// ErrNotFound when no transaction matches.
type TransactionRunner interface {
	WithLockedTransaction(ctx context.Context, correlationID string, fn func(ctx context.Context, store ReconciliationStore) error) error
}
