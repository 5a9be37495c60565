// Package mpesa implements the Safaricom Daraja STK push protocol: token
// acquisition, push-payment submission and callback payload decoding.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukasoft/pos/internal/payments/ports"
)

const (
	sandboxAuthURL    = "https://sandbox.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"
	sandboxSTKPushURL = "https://sandbox.safaricom.co.ke/mpesa/stkpush/v1/processrequest"

	productionAuthURL    = "https://api.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"
	productionSTKPushURL = "https://api.safaricom.co.ke/mpesa/stkpush/v1/processrequest"

	// CallbackPath is where the gateway delivers result notifications.
	CallbackPath = "/v1/payments/callback"

	countryCode      = "254"
	timestampLayout  = "20060102150405"
	defaultTimeout   = 15 * time.Second
	responseAccepted = "0"
)

// Config carries the gateway credentials and endpoints. AuthURL and
// STKPushURL are derived from Environment when empty; tests override
// them directly.
type Config struct {
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PassKey         string
	Environment     string // "sandbox" or "production"
	CallbackBaseURL string
	AuthURL         string
	STKPushURL      string
	Timeout         time.Duration
}

// Client talks to the gateway. It holds no connection or tunnel state;
// every call derives what it needs from the injected configuration.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewClient constructs a gateway client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.AuthURL == "" || cfg.STKPushURL == "" {
		if cfg.Environment == "production" {
			cfg.AuthURL = productionAuthURL
			cfg.STKPushURL = productionSTKPushURL
		} else {
			cfg.AuthURL = sandboxAuthURL
			cfg.STKPushURL = sandboxSTKPushURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
		now:    time.Now,
	}
}

// NormalizePhone converts a phone number to the 2547XXXXXXXX
// international form: a leading "+" is stripped, a leading "0" is
// replaced by the country code, and the country code is prefixed when
// absent.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") {
		return countryCode + phone[1:]
	}
	if !strings.HasPrefix(phone, countryCode) {
		return countryCode + phone
	}
	return phone
}

// generatePassword builds the short-lived request password:
// base64(shortcode + passkey + timestamp) with a YYYYMMDDHHMMSS
// timestamp.
func generatePassword(shortCode, passKey string, at time.Time) (password, timestamp string) {
	timestamp = at.Format(timestampLayout)
	password = base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
	return password, timestamp
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// AccessToken obtains a bearer token. Network failures are converted
// into a typed "network" failure so callers can present an offline
// message instead of a stack trace.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.AuthURL, nil)
	if err != nil {
		return "", &ports.GatewayError{Reason: ports.ReasonUnknown, Message: "build token request", Err: err}
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "network error getting gateway access token", "error", err)
		return "", &ports.GatewayError{Reason: ports.ReasonNetwork, Message: "cannot reach payment gateway", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &ports.GatewayError{Reason: ports.ReasonAuth, Message: fmt.Sprintf("gateway rejected credentials (status %d)", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ports.GatewayError{Reason: ports.ReasonUnknown, Message: fmt.Sprintf("unexpected token response status %d", resp.StatusCode)}
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", &ports.GatewayError{Reason: ports.ReasonUnknown, Message: "decode token response", Err: err}
	}
	if token.AccessToken == "" {
		return "", &ports.GatewayError{Reason: ports.ReasonAuth, Message: "gateway returned empty access token"}
	}

	return token.AccessToken, nil
}

// callbackURL resolves the webhook address. A missing base URL fails
// fast as a configuration error: a push payment with an unreachable
// callback URL is worse than an explicit upfront failure.
func (c *Client) callbackURL() (string, error) {
	if c.cfg.CallbackBaseURL == "" {
		return "", &ports.GatewayError{
			Reason:  ports.ReasonConfig,
			Message: "missing callback base URL configuration; mobile-money payments unavailable",
		}
	}
	return strings.TrimRight(c.cfg.CallbackBaseURL, "/") + CallbackPath, nil
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiateSTKPush submits a push-payment request. ResponseCode "0"
// means the prompt was accepted for processing; payment confirmation
// arrives later on the callback.
func (c *Client) InitiateSTKPush(ctx context.Context, req ports.PushPaymentRequest) (*ports.PushPaymentResponse, error) {
	callbackURL, err := c.callbackURL()
	if err != nil {
		return nil, err
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := generatePassword(c.cfg.ShortCode, c.cfg.PassKey, c.now())
	phone := NormalizePhone(req.PhoneNumber)

	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount.IntPart(),
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       callbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ports.GatewayError{Reason: ports.ReasonUnknown, Message: "encode push request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.STKPushURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ports.GatewayError{Reason: ports.ReasonUnknown, Message: "build push request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.ErrorContext(ctx, "network error during STK push", "error", err)
		return nil, &ports.GatewayError{Reason: ports.ReasonNetwork, Message: "cannot reach payment gateway", Err: err}
	}
	defer resp.Body.Close()

	var result stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ports.GatewayError{Reason: ports.ReasonUnknown, Message: "decode push response", Err: err}
	}

	if result.ResponseCode != responseAccepted {
		message := result.ResponseDescription
		if message == "" {
			message = result.ErrorMessage
		}
		if message == "" {
			message = "payment request failed"
		}
		return nil, &ports.GatewayError{Reason: ports.ReasonDeclined, Message: message}
	}

	c.logger.InfoContext(ctx, "STK push accepted",
		"checkout_request_id", result.CheckoutRequestID,
		"merchant_request_id", result.MerchantRequestID,
	)

	return &ports.PushPaymentResponse{
		MerchantRequestID:   result.MerchantRequestID,
		CheckoutRequestID:   result.CheckoutRequestID,
		ResponseCode:        result.ResponseCode,
		ResponseDescription: result.ResponseDescription,
		CustomerMessage:     result.CustomerMessage,
		PhoneNumber:         phone,
	}, nil
}
