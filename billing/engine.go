/*
engine.go - Invoice creation and payment application

PURPOSE:
  Creates invoices on order issuance (called by the order engine through
  the InvoiceIssuer contract) and applies partial payments against them.

PAYMENT APPLICATION:
  Two simultaneous ApplyPayment calls must not both read the same
  PaidAmount baseline and silently lose one payment. Every application
  runs inside one store transaction: insert the payment row, re-sum ALL
  payment rows for the invoice, write the rollup. PaidAmount is never
  incremented and never taken from the caller.

SEE ALSO:
  - order/engine.go: Calls IssueFor when an order enters issuance
  - status.go: Derived status; nothing here stores one
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/distribution-ledger/clock"
	"github.com/warp/distribution-ledger/order"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store Store
	clock clock.Clock
}

func NewEngine(store Store, clk clock.Clock) *Engine {
	return &Engine{store: store, clock: clk}
}

// Compile-time check: the billing engine is the order engine's issuer.
var _ order.InvoiceIssuer = (*Engine)(nil)

// =============================================================================
// INVOICE CREATION
// =============================================================================

// IssueFor creates the invoice for an order that just entered its
// issuance state. Idempotent keyed by order id: a second call fails
// with ErrDuplicateInvoice, which a retrying caller may treat as done.
//
// The amount is snapshotted from the order's current total; the due
// date is a fixed offset from the order's creation date, not from
// issuance.
func (e *Engine) IssueFor(ctx context.Context, o *order.Order) error {
	return e.store.WithTx(ctx, func(s Store) error {
		existing, err := s.InvoiceByOrder(ctx, o.ID)
		if err != nil && !errors.Is(err, ErrInvoiceNotFound) {
			return err
		}
		if existing != nil {
			return &DuplicateInvoiceError{OrderID: string(o.ID), Existing: existing.ID}
		}

		n, err := s.NextNumber(ctx, "INV")
		if err != nil {
			return err
		}
		inv := &Invoice{
			ID:         InvoiceID(uuid.NewString()),
			Number:     fmt.Sprintf("INV-%06d", n),
			OrderID:    o.ID,
			BuyerID:    o.BuyerID,
			Amount:     o.TotalAmount(),
			PaidAmount: decimal.Zero,
			DueDate:    o.CreatedAt.Add(DueOffset),
			CreatedAt:  e.clock.Now(),
		}
		return s.SaveInvoice(ctx, inv)
	})
}

// Issued reports whether an invoice exists for the order.
func (e *Engine) Issued(ctx context.Context, id order.OrderID) (bool, error) {
	_, err := e.store.InvoiceByOrder(ctx, id)
	if errors.Is(err, ErrInvoiceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// PAYMENT APPLICATION
// =============================================================================

// ApplyPayment records a payment against an invoice and recomputes the
// cached rollup from the full payment ledger, all in one transaction.
//
// Partial payments are allowed; over-payment is rejected rather than
// capped, so a "pay in full" caller must submit the exact remaining
// balance.
func (e *Engine) ApplyPayment(ctx context.Context, id InvoiceID, amount decimal.Decimal, date time.Time, method Method, createdBy, notes string) (*Invoice, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	if !ValidMethod(method) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	var out *Invoice
	err := e.store.WithTx(ctx, func(s Store) error {
		inv, err := s.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		remaining := inv.Outstanding()
		if amount.GreaterThan(remaining) {
			return &OverPaymentError{InvoiceID: id, Remaining: remaining, Requested: amount}
		}

		p := &Payment{
			ID:        PaymentID(uuid.NewString()),
			InvoiceID: id,
			Amount:    amount,
			Date:      date,
			Method:    method,
			CreatedBy: createdBy,
			Notes:     notes,
			CreatedAt: e.clock.Now(),
		}
		if err := s.AppendPayment(ctx, p); err != nil {
			return err
		}

		// Recompute from the ledger, never increment.
		payments, err := s.PaymentsByInvoice(ctx, id)
		if err != nil {
			return err
		}
		paid := decimal.Zero
		for _, pay := range payments {
			paid = paid.Add(pay.Amount)
		}
		inv.PaidAmount = paid
		if paid.GreaterThanOrEqual(inv.Amount) && inv.PaidAt == nil {
			now := e.clock.Now()
			inv.PaidAt = &now
		}
		if err := s.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) Invoice(ctx context.Context, id InvoiceID) (*Invoice, error) {
	return e.store.GetInvoice(ctx, id)
}

func (e *Engine) InvoiceForOrder(ctx context.Context, orderID order.OrderID) (*Invoice, error) {
	return e.store.InvoiceByOrder(ctx, orderID)
}

func (e *Engine) InvoicesByBuyer(ctx context.Context, buyerID string) ([]*Invoice, error) {
	return e.store.InvoicesByBuyer(ctx, buyerID)
}

// InvoicesByStatus filters by the time-derived status at the current
// clock reading, never by anything stored.
func (e *Engine) InvoicesByStatus(ctx context.Context, status Status) ([]*Invoice, error) {
	all, err := e.store.Invoices(ctx)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	var out []*Invoice
	for _, inv := range all {
		if inv.StatusAt(now) == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (e *Engine) Payments(ctx context.Context, id InvoiceID) ([]*Payment, error) {
	if _, err := e.store.GetInvoice(ctx, id); err != nil {
		return nil, err
	}
	return e.store.PaymentsByInvoice(ctx, id)
}
