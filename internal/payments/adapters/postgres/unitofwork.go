package postgres

import (
	"context"
	"fmt"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionRunner serializes callback reconciliation on the matched
// payment transaction row. The SELECT ... FOR UPDATE blocks concurrent
// deliveries of the same callback until the first one commits, so the
// second sees the already-applied state.
type TransactionRunner struct {
	pool *pgxpool.Pool
}

func NewTransactionRunner(pool *pgxpool.Pool) *TransactionRunner {
	return &TransactionRunner{pool: pool}
}

func (r *TransactionRunner) WithLockedTransaction(ctx context.Context, correlationID string, fn func(ctx context.Context, store ports.ReconciliationStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin reconciliation: %w", err)
	}
	defer tx.Rollback(ctx)

	txn, err := findTransactionForUpdate(ctx, tx, correlationID)
	if err != nil {
		return err
	}

	store := &reconciliationStore{tx: tx, txn: txn}
	if err := fn(ctx, store); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reconciliation: %w", err)
	}
	return nil
}

type reconciliationStore struct {
	tx  pgx.Tx
	txn *domain.PaymentTransaction
}

func (s *reconciliationStore) Transaction() *domain.PaymentTransaction {
	return s.txn
}

func (s *reconciliationStore) SaveTransaction(ctx context.Context, txn *domain.PaymentTransaction) error {
	return updateTransaction(ctx, s.tx, *txn)
}

func (s *reconciliationStore) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return getOrderForUpdate(ctx, s.tx, id)
}

func (s *reconciliationStore) SaveOrder(ctx context.Context, order *domain.Order) error {
	return updateOrder(ctx, s.tx, *order)
}

func (s *reconciliationStore) OrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	return listOrderItems(ctx, s.tx, orderID)
}

func (s *reconciliationStore) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return getInvoiceByNumber(ctx, s.tx, number)
}

// CreateInvoice runs in a nested transaction (savepoint) so a unique
// violation does not abort the outer reconciliation transaction; the
// caller re-reads the winner's invoice after ErrDuplicateInvoice.
func (s *reconciliationStore) CreateInvoice(ctx context.Context, invoice domain.Invoice, items []domain.InvoiceItem) error {
	nested, err := s.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin invoice savepoint: %w", err)
	}
	if err := insertInvoice(ctx, nested, invoice, items); err != nil {
		_ = nested.Rollback(ctx)
		return err
	}
	if err := nested.Commit(ctx); err != nil {
		return fmt.Errorf("release invoice savepoint: %w", err)
	}
	return nil
}

func (s *reconciliationStore) SaveInvoiceAmounts(ctx context.Context, invoice *domain.Invoice) error {
	return updateInvoiceAmounts(ctx, s.tx, *invoice)
}
