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

const orderColumns = `id, reference, customer_id, biller_id, source, status,
	grand_total, paid_amount, due_amount, payment_status, payment_method,
	created_at, updated_at`

// OrderRepository persists orders and their line items in Postgres.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, order domain.Order, items []domain.OrderItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}
	for _, item := range items {
		if err := insertOrderItem(ctx, tx, item); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrderRow(r.pool.QueryRow(ctx, query, id))
}

func (r *OrderRepository) GetByReference(ctx context.Context, reference string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE reference = $1`
	return scanOrderRow(r.pool.QueryRow(ctx, query, reference))
}

func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	return listOrderItems(ctx, r.pool, orderID)
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	return updateOrder(ctx, r.pool, order)
}

// UpdateLocked applies fn to the order while its row is locked, which
// serializes manual payments against callback reconciliation on the
// same order.
func (r *OrderRepository) UpdateLocked(ctx context.Context, id string, fn func(order *domain.Order) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin order update: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := getOrderForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := fn(order); err != nil {
		return err
	}
	if err := updateOrder(ctx, tx, *order); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order update: %w", err)
	}
	return nil
}

func insertOrder(ctx context.Context, q querier, order domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := q.Exec(ctx, query,
		order.ID,
		order.Reference,
		order.CustomerID,
		order.BillerID,
		order.Source,
		order.Status,
		order.GrandTotal,
		order.PaidAmount,
		order.DueAmount,
		order.PaymentStatus,
		order.PaymentMethod,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func insertOrderItem(ctx context.Context, q querier, item domain.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_cost, discount, tax_rate, tax_amount, total_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := q.Exec(ctx, query,
		item.ID,
		item.OrderID,
		item.ProductID,
		item.Quantity,
		item.UnitCost,
		item.Discount,
		item.TaxRate,
		item.TaxAmount,
		item.TotalCost,
	)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func updateOrder(ctx context.Context, q querier, order domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1, grand_total = $2, paid_amount = $3, due_amount = $4,
			payment_status = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := q.Exec(ctx, query,
		order.Status,
		order.GrandTotal,
		order.PaidAmount,
		order.DueAmount,
		order.PaymentStatus,
		time.Now().UTC(),
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func getOrderForUpdate(ctx context.Context, q querier, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrderRow(q.QueryRow(ctx, query, id))
}

func listOrderItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, unit_cost, discount, tax_rate, tax_amount, total_cost
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitCost,
			&item.Discount,
			&item.TaxRate,
			&item.TaxAmount,
			&item.TotalCost,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func scanOrderRow(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.Reference,
		&order.CustomerID,
		&order.BillerID,
		&order.Source,
		&order.Status,
		&order.GrandTotal,
		&order.PaidAmount,
		&order.DueAmount,
		&order.PaymentStatus,
		&order.PaymentMethod,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return &order, nil
}
