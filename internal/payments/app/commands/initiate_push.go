package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InitiatePushPaymentCommand asks the mobile-money gateway to prompt
// the customer's phone for payment against an order.
type InitiatePushPaymentCommand struct {
	OrderID     string
	PhoneNumber string
	Amount      decimal.Decimal
}

func (c InitiatePushPaymentCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return errors.New("order_id is required")
	}
	if strings.TrimSpace(c.PhoneNumber) == "" {
		return errors.New("phone_number is required")
	}
	if !c.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

// InitiatePushPaymentResult reports the gateway's acceptance.
type InitiatePushPaymentResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	Message           string
}

type InitiatePushHandler interface {
	Handle(ctx context.Context, cmd InitiatePushPaymentCommand) (*InitiatePushPaymentResult, error)
}

// InitiatePushPaymentCommandHandler submits the push request and, on
// gateway acceptance, records the pending transaction keyed by both
// correlation identifiers. That row's existence is what makes the later
// callback idempotent-matchable.
type InitiatePushPaymentCommandHandler struct {
	orders       ports.OrderRepository
	transactions ports.TransactionRepository
	gateway      ports.PaymentGateway
	events       ports.EventBus
	now          func() time.Time
}

func NewInitiatePushPaymentCommandHandler(
	orders ports.OrderRepository,
	transactions ports.TransactionRepository,
	gateway ports.PaymentGateway,
	events ports.EventBus,
) *InitiatePushPaymentCommandHandler {
	return &InitiatePushPaymentCommandHandler{
		orders:       orders,
		transactions: transactions,
		gateway:      gateway,
		events:       events,
		now:          time.Now,
	}
}

func (h *InitiatePushPaymentCommandHandler) Handle(ctx context.Context, cmd InitiatePushPaymentCommand) (*InitiatePushPaymentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	order, err := h.orders.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	resp, err := h.gateway.InitiateSTKPush(ctx, ports.PushPaymentRequest{
		PhoneNumber:      cmd.PhoneNumber,
		Amount:           cmd.Amount,
		AccountReference: "ORDER-" + order.Reference,
		Description:      "Payment for order " + order.Reference,
	})
	if err != nil {
		return nil, err
	}

	now := h.now().UTC()
	code := resp.ResponseCode
	desc := resp.ResponseDescription
	message := resp.CustomerMessage
	txn := domain.PaymentTransaction{
		ID:                  uuid.NewString(),
		OrderID:             &order.ID,
		PhoneNumber:         resp.PhoneNumber,
		Amount:              cmd.Amount,
		MerchantRequestID:   resp.MerchantRequestID,
		CheckoutRequestID:   resp.CheckoutRequestID,
		Status:              domain.TransactionPending,
		ResponseCode:        &code,
		ResponseDescription: &desc,
		CustomerMessage:     &message,
		AppliedAmount:       decimal.Zero,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := h.transactions.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("record payment transaction: %w", err)
	}

	_ = h.events.PublishPushPaymentInitiated(ctx, resp.CheckoutRequestID)

	customerMessage := resp.CustomerMessage
	if customerMessage == "" {
		customerMessage = "Payment request sent successfully"
	}

	return &InitiatePushPaymentResult{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Message:           customerMessage,
	}, nil
}
