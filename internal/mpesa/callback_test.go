package mpesa

import (
	"encoding/json"
	"testing"
)

func TestCallbackMetadata(t *testing.T) {
	t.Run("parses full success metadata", func(t *testing.T) {
		raw := `{
			"Body": {
				"stkCallback": {
					"MerchantRequestID": "mr-1",
					"CheckoutRequestID": "cr-1",
					"ResultCode": 0,
					"ResultDesc": "The service request is processed successfully.",
					"CallbackMetadata": {
						"Item": [
							{"Name": "Amount", "Value": 250.00},
							{"Name": "MpesaReceiptNumber", "Value": "QK12XYZ789"},
							{"Name": "TransactionDate", "Value": 20240615143045},
							{"Name": "PhoneNumber", "Value": 254712345678}
						]
					}
				}
			}
		}`

		var envelope CallbackEnvelope
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			t.Fatalf("unmarshal callback: %v", err)
		}

		callback := envelope.Body.StkCallback
		if callback.ResultCode != 0 {
			t.Errorf("ResultCode = %d", callback.ResultCode)
		}

		md := callback.Metadata()
		if md.Amount == nil || md.Amount.StringFixed(2) != "250.00" {
			t.Errorf("Amount = %v", md.Amount)
		}
		if md.ReceiptNumber != "QK12XYZ789" {
			t.Errorf("ReceiptNumber = %s", md.ReceiptNumber)
		}
		if md.TransactionDate == nil {
			t.Fatal("TransactionDate not parsed")
		}
		if got := md.TransactionDate.Format(timestampLayout); got != "20240615143045" {
			t.Errorf("TransactionDate = %s", got)
		}
	})

	t.Run("failure callback has no metadata", func(t *testing.T) {
		raw := `{
			"Body": {
				"stkCallback": {
					"MerchantRequestID": "mr-1",
					"CheckoutRequestID": "cr-1",
					"ResultCode": 1032,
					"ResultDesc": "Request cancelled by user"
				}
			}
		}`

		var envelope CallbackEnvelope
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			t.Fatalf("unmarshal callback: %v", err)
		}

		md := envelope.Body.StkCallback.Metadata()
		if md.Amount != nil || md.ReceiptNumber != "" || md.TransactionDate != nil {
			t.Errorf("expected empty metadata, got %+v", md)
		}
	})

	t.Run("malformed values for known keys are dropped", func(t *testing.T) {
		callback := StkCallback{
			CallbackMetadata: CallbackMetadata{Item: []MetadataItem{
				{Name: "Amount", Value: true},
				{Name: "TransactionDate", Value: "not-a-date"},
				{Name: "MpesaReceiptNumber", Value: 42},
			}},
		}

		md := callback.Metadata()
		if md.Amount != nil || md.ReceiptNumber != "" || md.TransactionDate != nil {
			t.Errorf("expected empty metadata, got %+v", md)
		}
	})

	t.Run("string amount is accepted", func(t *testing.T) {
		callback := StkCallback{
			CallbackMetadata: CallbackMetadata{Item: []MetadataItem{
				{Name: "Amount", Value: "99.50"},
			}},
		}

		md := callback.Metadata()
		if md.Amount == nil || md.Amount.StringFixed(2) != "99.50" {
			t.Errorf("Amount = %v", md.Amount)
		}
	})
}

func TestAck(t *testing.T) {
	if ack := AckSuccess(); ack.ResultCode != 0 || ack.ResultDesc != "Success" {
		t.Errorf("AckSuccess() = %+v", ack)
	}
	if ack := AckFailure("boom"); ack.ResultCode != 1 || ack.ResultDesc != "boom" {
		t.Errorf("AckFailure() = %+v", ack)
	}
	if ack := AckFailure(""); ack.ResultDesc != "Failed" {
		t.Errorf("AckFailure(\"\") = %+v", ack)
	}
}
