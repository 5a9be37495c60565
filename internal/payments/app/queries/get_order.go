package queries

import (
	"context"
	"errors"
	"strings"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID.
type GetOrderQuery struct {
	OrderID string
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return errors.New("order_id is required")
	}
	return nil
}

// OrderView is an order together with its line items.
type OrderView struct {
	Order domain.Order       `json:"order"`
	Items []domain.OrderItem `json:"items"`
}

// GetOrderQueryHandler executes GetOrderQuery.
type GetOrderQueryHandler struct {
	orders ports.OrderRepository
}

func NewGetOrderQueryHandler(orders ports.OrderRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{orders: orders}
}

func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*OrderView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.orders.GetByID(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}

	items, err := h.orders.ListItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return &OrderView{Order: *order, Items: items}, nil
}
