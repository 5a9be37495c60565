package ports

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// PushPaymentRequest is the application's view of an STK push request.
type PushPaymentRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// PushPaymentResponse carries the gateway's acceptance of a push
// request. Acceptance means "prompt sent", not "paid".
type PushPaymentResponse struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
	// PhoneNumber is the normalized international form actually sent.
	PhoneNumber string
}

// PaymentGateway submits push-payment requests to the external
// mobile-money provider. Implementations are stateless; configuration
// is injected, not held as process-wide state.
type PaymentGateway interface {
	InitiateSTKPush(ctx context.Context, req PushPaymentRequest) (*PushPaymentResponse, error)
}

// FailureReason classifies gateway failures so callers can distinguish
// "retry later" from "misconfigured" from "declined".
type FailureReason string

const (
	ReasonConfig   FailureReason = "config"
	ReasonNetwork  FailureReason = "network"
	ReasonAuth     FailureReason = "auth"
	ReasonDeclined FailureReason = "declined"
	ReasonUnknown  FailureReason = "unknown"
)

// GatewayError is a typed gateway failure. Network-layer exceptions are
// converted into it rather than propagated raw.
type GatewayError struct {
	Reason  FailureReason
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
