package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus captures the lifecycle of a push-payment attempt.
// pending is the only non-terminal state; cancelled is reachable only
// through an administrative action, never automatically.
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionSuccessful TransactionStatus = "successful"
	TransactionFailed     TransactionStatus = "failed"
	TransactionCancelled  TransactionStatus = "cancelled"
)

// PaymentTransaction records one push-payment attempt, keyed by the
// gateway's correlation identifiers. AppliedToInvoice is the idempotency
// guard: once set, the transaction's monetary effect is never applied
// again regardless of how often the gateway re-delivers the callback.
type PaymentTransaction struct {
	ID                  string            `json:"id"`
	OrderID             *string           `json:"order_id,omitempty"`
	PhoneNumber         string            `json:"phone_number"`
	Amount              decimal.Decimal   `json:"amount"`
	MerchantRequestID   string            `json:"merchant_request_id"`
	CheckoutRequestID   string            `json:"checkout_request_id"`
	Status              TransactionStatus `json:"status"`
	ReceiptNumber       *string           `json:"receipt_number,omitempty"`
	TransactionDate     *time.Time        `json:"transaction_date,omitempty"`
	ResponseCode        *string           `json:"response_code,omitempty"`
	ResponseDescription *string           `json:"response_description,omitempty"`
	CustomerMessage     *string           `json:"customer_message,omitempty"`
	AppliedToInvoice    bool              `json:"applied_to_invoice"`
	AppliedAmount       decimal.Decimal   `json:"applied_amount"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// IsTerminal indicates whether the transaction has left pending.
func (t PaymentTransaction) IsTerminal() bool {
	switch t.Status {
	case TransactionSuccessful, TransactionFailed, TransactionCancelled:
		return true
	default:
		return false
	}
}
