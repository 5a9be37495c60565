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

const invoiceColumns = `id, invoice_no, customer_id, due_date, amount,
	amount_paid, amount_due, status, created_at, updated_at`

// InvoiceRepository persists invoices in Postgres. The unique constraint
// on invoice_no doubles as the duplicate-creation signal.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice domain.Invoice, items []domain.InvoiceItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create invoice: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertInvoice(ctx, tx, invoice, items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return getInvoiceByNumber(ctx, r.pool, number)
}

func (r *InvoiceRepository) UpdateAmounts(ctx context.Context, invoice domain.Invoice) error {
	return updateInvoiceAmounts(ctx, r.pool, invoice)
}

func insertInvoice(ctx context.Context, q querier, invoice domain.Invoice, items []domain.InvoiceItem) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := q.Exec(ctx, query,
		invoice.ID,
		invoice.Number,
		invoice.CustomerID,
		invoice.DueDate,
		invoice.Amount,
		invoice.AmountPaid,
		invoice.AmountDue,
		invoice.Status,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicateInvoice
		}
		return fmt.Errorf("insert invoice: %w", err)
	}

	for _, item := range items {
		itemQuery := `
			INSERT INTO invoice_items (id, invoice_id, product_id, quantity, cost, discount, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := q.Exec(ctx, itemQuery,
			item.ID,
			item.InvoiceID,
			item.ProductID,
			item.Quantity,
			item.Cost,
			item.Discount,
			item.Total,
		); err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}

	return nil
}

func getInvoiceByNumber(ctx context.Context, q querier, number string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_no = $1`

	var invoice domain.Invoice
	err := q.QueryRow(ctx, query, number).Scan(
		&invoice.ID,
		&invoice.Number,
		&invoice.CustomerID,
		&invoice.DueDate,
		&invoice.Amount,
		&invoice.AmountPaid,
		&invoice.AmountDue,
		&invoice.Status,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select invoice: %w", err)
	}
	return &invoice, nil
}

func updateInvoiceAmounts(ctx context.Context, q querier, invoice domain.Invoice) error {
	query := `
		UPDATE invoices
		SET amount = $1, amount_paid = $2, amount_due = $3, status = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := q.Exec(ctx, query,
		invoice.Amount,
		invoice.AmountPaid,
		invoice.AmountDue,
		invoice.Status,
		time.Now().UTC(),
		invoice.ID,
	)
	if err != nil {
		return fmt.Errorf("update invoice amounts: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}
