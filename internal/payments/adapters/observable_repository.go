package adapters

import (
	"context"
	"time"

	"github.com/dukasoft/pos/internal/database"
	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/dukasoft/pos/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableOrderRepository wraps an OrderRepository with spans and
// query-duration metrics.
type ObservableOrderRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableOrderRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableOrderRepository {
	return &ObservableOrderRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableOrderRepository) Create(ctx context.Context, order domain.Order, items []domain.OrderItem) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Create")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.Int("order.item_count", len(items)),
		attribute.String("operation", "create"),
	)

	start := time.Now()
	err := r.repo.Create(ctx, order, items)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "create_order", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.GetByID")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("operation", "get_by_id"),
	)

	start := time.Now()
	order, err := r.repo.GetByID(ctx, id)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "get_order_by_id", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

func (r *ObservableOrderRepository) GetByReference(ctx context.Context, reference string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.GetByReference")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.reference", reference),
		attribute.String("operation", "get_by_reference"),
	)

	start := time.Now()
	order, err := r.repo.GetByReference(ctx, reference)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "get_order_by_reference", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return order, nil
}

func (r *ObservableOrderRepository) ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.ListItems")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", orderID),
		attribute.String("operation", "list_items"),
	)

	start := time.Now()
	items, err := r.repo.ListItems(ctx, orderID)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "list_order_items", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(items)))
	telemetry.SetSpanSuccess(span)
	return items, nil
}

func (r *ObservableOrderRepository) Update(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Update")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.payment_status", string(order.PaymentStatus)),
		attribute.String("operation", "update"),
	)

	start := time.Now()
	err := r.repo.Update(ctx, order)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "update_order", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableOrderRepository) UpdateLocked(ctx context.Context, id string, fn func(order *domain.Order) error) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.UpdateLocked")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", id),
		attribute.String("operation", "update_locked"),
	)

	start := time.Now()
	err := r.repo.UpdateLocked(ctx, id, fn)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "update_order_locked", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

// ObservableTransactionRepository wraps a TransactionRepository with
// spans and query-duration metrics.
type ObservableTransactionRepository struct {
	repo    ports.TransactionRepository
	metrics *database.Metrics
}

func NewObservableTransactionRepository(repo ports.TransactionRepository, metrics *database.Metrics) *ObservableTransactionRepository {
	return &ObservableTransactionRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableTransactionRepository) Create(ctx context.Context, txn domain.PaymentTransaction) error {
	ctx, span := telemetry.StartSpan(ctx, "TransactionRepository.Create")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("transaction.id", txn.ID),
		attribute.String("operation", "create"),
	)

	start := time.Now()
	err := r.repo.Create(ctx, txn)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "create_transaction", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableTransactionRepository) FindByCorrelation(ctx context.Context, correlationID string) (*domain.PaymentTransaction, error) {
	ctx, span := telemetry.StartSpan(ctx, "TransactionRepository.FindByCorrelation")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("transaction.correlation_id", correlationID),
		attribute.String("operation", "find_by_correlation"),
	)

	start := time.Now()
	txn, err := r.repo.FindByCorrelation(ctx, correlationID)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "find_transaction_by_correlation", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return txn, nil
}

func (r *ObservableTransactionRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]domain.PaymentTransaction, error) {
	ctx, span := telemetry.StartSpan(ctx, "TransactionRepository.ListStalePending")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("cutoff", cutoff.Format(time.RFC3339)),
		attribute.String("operation", "list_stale_pending"),
	)

	start := time.Now()
	txns, err := r.repo.ListStalePending(ctx, cutoff)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "list_stale_pending_transactions", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(txns)))
	telemetry.SetSpanSuccess(span)
	return txns, nil
}

func (r *ObservableTransactionRepository) Update(ctx context.Context, txn domain.PaymentTransaction) error {
	ctx, span := telemetry.StartSpan(ctx, "TransactionRepository.Update")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("transaction.id", txn.ID),
		attribute.String("transaction.status", string(txn.Status)),
		attribute.String("operation", "update"),
	)

	start := time.Now()
	err := r.repo.Update(ctx, txn)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "update_transaction", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
