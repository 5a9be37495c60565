package mpesa

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CallbackEnvelope is the asynchronous result notification delivered by
// the gateway after a push request.
type CallbackEnvelope struct {
	Body CallbackBody `json:"Body"`
}

type CallbackBody struct {
	StkCallback StkCallback `json:"stkCallback"`
}

// StkCallback reports the outcome of one push request. ResultCode 0 is
// success; anything else is a failure with ResultDesc explaining why.
type StkCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is one {Name, Value} pair from the success payload. The
// value type varies per key, so it stays dynamic until Metadata()
// resolves the known keys.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// Metadata is the typed view of the callback's metadata items. Fields
// are nil/empty when the payload omits them.
type Metadata struct {
	Amount          *decimal.Decimal
	ReceiptNumber   string
	TransactionDate *time.Time
}

// Metadata resolves the known metadata keys (Amount, MpesaReceiptNumber,
// TransactionDate). Unknown keys are ignored; malformed values for
// known keys are dropped rather than failing the whole callback.
func (c StkCallback) Metadata() Metadata {
	var md Metadata
	for _, item := range c.CallbackMetadata.Item {
		switch item.Name {
		case "Amount", "amount":
			if amount, ok := decimalValue(item.Value); ok {
				md.Amount = &amount
			}
		case "MpesaReceiptNumber":
			if receipt, ok := item.Value.(string); ok {
				md.ReceiptNumber = receipt
			}
		case "TransactionDate":
			if ts, ok := timestampValue(item.Value); ok {
				md.TransactionDate = &ts
			}
		}
	}
	return md
}

func decimalValue(v any) (decimal.Decimal, bool) {
	switch value := v.(type) {
	case float64:
		return decimal.NewFromFloat(value), true
	case string:
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return parsed, true
	default:
		return decimal.Decimal{}, false
	}
}

// timestampValue parses the gateway's 14-digit YYYYMMDDHHMMSS timestamp
// into a timezone-aware instant.
func timestampValue(v any) (time.Time, bool) {
	var raw string
	switch value := v.(type) {
	case float64:
		raw = strconv.FormatFloat(value, 'f', -1, 64)
	case string:
		raw = value
	default:
		return time.Time{}, false
	}

	if len(raw) != len(timestampLayout) {
		return time.Time{}, false
	}

	parsed, err := time.ParseInLocation(timestampLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// Ack is the response body the gateway expects from the callback
// handler. ResultCode 0 acknowledges the delivery; anything else makes
// the gateway retry, which is safe because reconciliation is
// idempotent.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func AckSuccess() Ack {
	return Ack{ResultCode: 0, ResultDesc: "Success"}
}

func AckFailure(desc string) Ack {
	if desc == "" {
		desc = "Failed"
	}
	return Ack{ResultCode: 1, ResultDesc: desc}
}
