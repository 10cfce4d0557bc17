// Package billing errors. Sentinels for errors.Is branching, structured
// types where the caller needs numbers to build a message.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateInvoice is returned when an invoice already exists for
	// the order. Invoices are 1:1 with orders, created at most once.
	// Defense in depth alongside the order engine's own issuance guard.
	ErrDuplicateInvoice = errors.New("invoice already exists for order")

	// ErrInvalidAmount is returned for payments that are zero or negative.
	ErrInvalidAmount = errors.New("payment amount must be positive")

	// ErrOverPayment is returned when a payment exceeds the remaining
	// balance. Over-payment is rejected, never silently capped: the
	// caller must request the exact remaining balance.
	ErrOverPayment = errors.New("payment exceeds remaining balance")

	// ErrInvoiceNotFound is returned for missing invoices.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvalidMethod is returned for unknown payment methods.
	ErrInvalidMethod = errors.New("unknown payment method")
)

// OverPaymentError carries the remaining balance so the UI can offer
// the exact pay-in-full amount.
type OverPaymentError struct {
	InvoiceID InvoiceID
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverPaymentError) Error() string {
	return fmt.Sprintf("invoice %s: payment %s exceeds remaining %s",
		e.InvoiceID, e.Requested, e.Remaining)
}

func (e *OverPaymentError) Unwrap() error { return ErrOverPayment }

// DuplicateInvoiceError reports the existing invoice for the order.
type DuplicateInvoiceError struct {
	OrderID  string
	Existing InvoiceID
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("order %s already invoiced (%s)", e.OrderID, e.Existing)
}

func (e *DuplicateInvoiceError) Unwrap() error { return ErrDuplicateInvoice }

// IsClientError returns true if the error is due to invalid caller
// input and will not succeed on retry without correction.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrOverPayment) ||
		errors.Is(err, ErrInvalidMethod)
}

// IsConflict returns true for idempotency violations a retrying caller
// may treat as success.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateInvoice)
}

// IsNotFound returns true if the error indicates a missing invoice.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound)
}
