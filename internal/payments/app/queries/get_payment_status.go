package queries

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
)

// GetPaymentStatusQuery looks up a push-payment attempt by its checkout
// correlation identifier.
type GetPaymentStatusQuery struct {
	CheckoutRequestID string
}

// Validate ensures the query has valid parameters.
func (q GetPaymentStatusQuery) Validate() error {
	if strings.TrimSpace(q.CheckoutRequestID) == "" {
		return errors.New("checkout_request_id is required")
	}
	return nil
}

// PaymentStatusView is the operator-facing status of one transaction,
// with the linked order's figures when available.
type PaymentStatusView struct {
	Status          domain.TransactionStatus `json:"status"`
	Amount          string                   `json:"amount"`
	PhoneNumber     string                   `json:"phone_number"`
	ReceiptNumber   string                   `json:"receipt_number,omitempty"`
	TransactionDate *time.Time               `json:"transaction_date,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	Order           *OrderSummary            `json:"order,omitempty"`
}

// OrderSummary carries the order figures relevant to a payment inquiry.
type OrderSummary struct {
	ID            string               `json:"id"`
	Reference     string               `json:"reference"`
	GrandTotal    string               `json:"grand_total"`
	PaidAmount    string               `json:"paid_amount"`
	DueAmount     string               `json:"due_amount"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	OrderStatus   domain.OrderStatus   `json:"order_status"`
}

// GetPaymentStatusQueryHandler resolves the transaction and, when
// linked, its order.
type GetPaymentStatusQueryHandler struct {
	transactions ports.TransactionRepository
	orders       ports.OrderRepository
}

func NewGetPaymentStatusQueryHandler(transactions ports.TransactionRepository, orders ports.OrderRepository) *GetPaymentStatusQueryHandler {
	return &GetPaymentStatusQueryHandler{transactions: transactions, orders: orders}
}

func (h *GetPaymentStatusQueryHandler) Handle(ctx context.Context, query GetPaymentStatusQuery) (*PaymentStatusView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	txn, err := h.transactions.FindByCorrelation(ctx, query.CheckoutRequestID)
	if err != nil {
		return nil, err
	}

	view := &PaymentStatusView{
		Status:          txn.Status,
		Amount:          txn.Amount.StringFixed(2),
		PhoneNumber:     txn.PhoneNumber,
		TransactionDate: txn.TransactionDate,
		CreatedAt:       txn.CreatedAt,
	}
	if txn.ReceiptNumber != nil {
		view.ReceiptNumber = *txn.ReceiptNumber
	}

	if txn.OrderID != nil {
		order, err := h.orders.GetByID(ctx, *txn.OrderID)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
		if order != nil {
			view.Order = &OrderSummary{
				ID:            order.ID,
				Reference:     order.Reference,
				GrandTotal:    order.GrandTotal.StringFixed(2),
				PaidAmount:    order.PaidAmount.StringFixed(2),
				DueAmount:     order.DueAmount.StringFixed(2),
				PaymentStatus: order.PaymentStatus,
				OrderStatus:   order.Status,
			}
		}
	}

	return view, nil
}
