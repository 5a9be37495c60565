package ports

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateInvoice is returned when an invoice with the same
	// deterministic number already exists. Reconciliation callers treat
	// it as success, not failure.
	ErrDuplicateInvoice = errors.New("invoice already exists")

	// ErrOverpayment is returned by the manual top-up path when the
	// amount exceeds the order's due amount.
	ErrOverpayment = errors.New("amount exceeds due amount")

	// ErrMalformedCallback is returned when a callback carries neither
	// correlation identifier. Not retriable.
	ErrMalformedCallback = errors.New("callback missing correlation identifiers")

	// ErrUnknownTransaction is returned when no payment transaction
	// matches a callback's correlation identifiers.
	ErrUnknownTransaction = errors.New("no payment transaction matches callback")
)
