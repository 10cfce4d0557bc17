/*
store.go - Persistence interface for invoices and payments

CONSISTENCY CONTRACT:
  ApplyPayment is the system's one hard correctness requirement: the new
  PaidAmount must be computed from a fresh read of all payment rows
  inside the same transaction that writes the new payment row. The
  engine therefore only ever touches payments through WithTx.
  Payment rows are append-only; invoices are mutable only in their
  cached rollup fields (PaidAmount, PaidAt).
*/
package billing

import (
	"context"

	"github.com/warp/distribution-ledger/order"
)

// Store persists invoices and their payment ledgers. Reads return
// clones the caller may mutate freely.
type Store interface {
	// SaveInvoice inserts a new invoice. Fails with ErrDuplicateInvoice
	// if one already exists for the same order (unique per order).
	SaveInvoice(ctx context.Context, inv *Invoice) error

	// UpdateInvoice rewrites the cached rollup fields of an existing
	// invoice. Amount, DueDate and identity fields never change.
	UpdateInvoice(ctx context.Context, inv *Invoice) error

	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)
	InvoiceByOrder(ctx context.Context, orderID order.OrderID) (*Invoice, error)
	InvoicesByBuyer(ctx context.Context, buyerID string) ([]*Invoice, error)
	Invoices(ctx context.Context) ([]*Invoice, error)

	// AppendPayment inserts a payment row. Append-only: no update or
	// delete exists.
	AppendPayment(ctx context.Context, p *Payment) error
	PaymentsByInvoice(ctx context.Context, id InvoiceID) ([]*Payment, error)

	// NextNumber increments and returns the named number series ("INV").
	NextNumber(ctx context.Context, series string) (int64, error)

	// WithTx executes fn atomically; concurrent calls against the same
	// invoice serialize.
	WithTx(ctx context.Context, fn func(Store) error) error
}
