package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dukasoft/pos/internal/mpesa"
	"github.com/dukasoft/pos/internal/payments/app"
	"github.com/dukasoft/pos/internal/payments/app/commands"
	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
	"github.com/shopspring/decimal"
)

// Handler exposes HTTP endpoints for orders and payments.
type Handler struct {
	service *app.Service
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register binds the handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/orders", h.handleOrders)
	mux.HandleFunc("/v1/orders/", h.handleOrderByID)
	mux.HandleFunc("/v1/payments/push", h.handlePush)
	mux.HandleFunc("/v1/payments/callback", h.handleCallback)
	mux.HandleFunc("/v1/payments/", h.handlePaymentStatus)
}

type checkoutItemPayload struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Discount  decimal.Decimal `json:"discount"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

type checkoutPayload struct {
	Reference     string                `json:"reference"`
	CustomerID    *string               `json:"customer_id"`
	BillerID      *string               `json:"biller_id"`
	Source        string                `json:"source"`
	PaymentMethod string                `json:"payment_method"`
	Items         []checkoutItemPayload `json:"items"`
	PaidAmount    *decimal.Decimal      `json:"paid_amount"`
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	cmd := commands.CheckoutCommand{
		Reference:     payload.Reference,
		CustomerID:    payload.CustomerID,
		BillerID:      payload.BillerID,
		Source:        payload.Source,
		PaymentMethod: domain.PaymentMethod(payload.PaymentMethod),
		PaidAmount:    payload.PaidAmount,
	}
	for _, item := range payload.Items {
		cmd.Items = append(cmd.Items, commands.CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			Discount:  item.Discount,
			TaxRate:   item.TaxRate,
		})
	}

	result, err := h.service.Checkout(r.Context(), cmd)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order":      result.Order,
		"invoice_no": result.InvoiceNo,
	})
}

func (h *Handler) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if id, ok := strings.CutSuffix(trimmed, "/payments"); ok {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.applyPayment(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.getOrder(w, r, trimmed)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, id string) {
	view, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type applyPaymentPayload struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request, orderID string) {
	var payload applyPaymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	order, err := h.service.ApplyManualPayment(r.Context(), commands.ApplyPaymentCommand{
		OrderID: orderID,
		Amount:  payload.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ports.ErrOverpayment):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type pushPaymentPayload struct {
	OrderID     string          `json:"order_id"`
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload pushPaymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	result, err := h.service.InitiatePushPayment(r.Context(), commands.InitiatePushPaymentCommand{
		OrderID:     payload.OrderID,
		PhoneNumber: payload.PhoneNumber,
		Amount:      payload.Amount,
	})
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"checkout_request_id": result.CheckoutRequestID,
		"merchant_request_id": result.MerchantRequestID,
		"message":             result.Message,
	})
}

// handleCallback receives the gateway's asynchronous result
// notification. The gateway redelivers on non-zero acks, so transient
// failures ack with a failure code and rely on reconciliation being
// idempotent.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var envelope mpesa.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeJSON(w, http.StatusBadRequest, mpesa.AckFailure("invalid callback payload"))
		return
	}

	callback := envelope.Body.StkCallback
	md := callback.Metadata()

	_, err := h.service.ReconcileCallback(r.Context(), commands.ReconcileCallbackCommand{
		MerchantRequestID: callback.MerchantRequestID,
		CheckoutRequestID: callback.CheckoutRequestID,
		ResultCode:        callback.ResultCode,
		ResultDesc:        callback.ResultDesc,
		Amount:            md.Amount,
		ReceiptNumber:     md.ReceiptNumber,
		TransactionDate:   md.TransactionDate,
	})
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrMalformedCallback):
			writeJSON(w, http.StatusBadRequest, mpesa.AckFailure("invalid callback payload"))
		case errors.Is(err, ports.ErrUnknownTransaction):
			writeJSON(w, http.StatusNotFound, mpesa.AckFailure("unknown transaction"))
		default:
			writeJSON(w, http.StatusInternalServerError, mpesa.AckFailure("processing failed"))
		}
		return
	}

	writeJSON(w, http.StatusOK, mpesa.AckSuccess())
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/v1/payments/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	view, err := h.service.GetPaymentStatus(r.Context(), trimmed)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// writeGatewayError maps a push failure onto the status the caller can
// act on: misconfiguration is the operator's problem, an unreachable
// gateway is retryable, a declined request is the request's fault.
func writeGatewayError(w http.ResponseWriter, err error) {
	var gwErr *ports.GatewayError
	if errors.As(err, &gwErr) {
		switch gwErr.Reason {
		case ports.ReasonConfig:
			writeError(w, http.StatusInternalServerError, gwErr.Message)
		case ports.ReasonNetwork:
			writeError(w, http.StatusServiceUnavailable, "payment system appears to be offline, try again later")
		case ports.ReasonAuth:
			writeError(w, http.StatusBadGateway, "payment gateway rejected credentials")
		case ports.ReasonDeclined:
			writeError(w, http.StatusBadRequest, gwErr.Message)
		default:
			writeError(w, http.StatusBadGateway, gwErr.Message)
		}
		return
	}

	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
