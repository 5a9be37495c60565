package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, order_id, phone_number, amount,
	merchant_request_id, checkout_request_id, status, receipt_number,
	transaction_date, response_code, response_description, customer_message,
	applied_to_invoice, applied_amount, created_at, updated_at`

// TransactionRepository persists push-payment transactions in Postgres.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Create(ctx context.Context, txn domain.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.pool.Exec(ctx, query,
		txn.ID,
		txn.OrderID,
		txn.PhoneNumber,
		txn.Amount,
		txn.MerchantRequestID,
		txn.CheckoutRequestID,
		txn.Status,
		txn.ReceiptNumber,
		txn.TransactionDate,
		txn.ResponseCode,
		txn.ResponseDescription,
		txn.CustomerMessage,
		txn.AppliedToInvoice,
		txn.AppliedAmount,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) FindByCorrelation(ctx context.Context, correlationID string) (*domain.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE checkout_request_id = $1 OR merchant_request_id = $1
	`
	return scanTransactionRow(r.pool.QueryRow(ctx, query, correlationID))
}

func (r *TransactionRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]domain.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, domain.TransactionPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.PaymentTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale transactions: %w", err)
	}
	return txns, nil
}

func (r *TransactionRepository) Update(ctx context.Context, txn domain.PaymentTransaction) error {
	return updateTransaction(ctx, r.pool, txn)
}

func findTransactionForUpdate(ctx context.Context, q querier, correlationID string) (*domain.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE checkout_request_id = $1 OR merchant_request_id = $1
		FOR UPDATE
	`
	return scanTransactionRow(q.QueryRow(ctx, query, correlationID))
}

func updateTransaction(ctx context.Context, q querier, txn domain.PaymentTransaction) error {
	query := `
		UPDATE payment_transactions
		SET status = $1, receipt_number = $2, transaction_date = $3,
			response_code = $4, response_description = $5, customer_message = $6,
			applied_to_invoice = $7, applied_amount = $8, updated_at = $9
		WHERE id = $10
	`

	result, err := q.Exec(ctx, query,
		txn.Status,
		txn.ReceiptNumber,
		txn.TransactionDate,
		txn.ResponseCode,
		txn.ResponseDescription,
		txn.CustomerMessage,
		txn.AppliedToInvoice,
		txn.AppliedAmount,
		time.Now().UTC(),
		txn.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransactionRow(row pgx.Row) (*domain.PaymentTransaction, error) {
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return txn, nil
}

func scanTransaction(row rowScanner) (*domain.PaymentTransaction, error) {
	var txn domain.PaymentTransaction
	err := row.Scan(
		&txn.ID,
		&txn.OrderID,
		&txn.PhoneNumber,
		&txn.Amount,
		&txn.MerchantRequestID,
		&txn.CheckoutRequestID,
		&txn.Status,
		&txn.ReceiptNumber,
		&txn.TransactionDate,
		&txn.ResponseCode,
		&txn.ResponseDescription,
		&txn.CustomerMessage,
		&txn.AppliedToInvoice,
		&txn.AppliedAmount,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment transaction: %w", err)
	}
	return &txn, nil
}
