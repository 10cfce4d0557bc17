/*
Package billing implements the invoice/payment ledger and the
outstanding-balance read model.

PURPOSE:
  Invoices are created as a side effect of order issuance, accumulate
  partial payments, and derive their status and aging classification
  from the clock. The per-buyer outstanding balance built on top of
  them soft-gates new order approval.

KEY CONCEPTS IN THIS FILE (types.go):
  - Invoice: amount frozen at creation; PaidAmount is a cached rollup
    of the payment ledger, recomputed transactionally on every insert
  - Payment: append-only rows, the source of truth for PaidAmount
  - Status: UNPAID | PAID | OVERDUE, always derived, never trusted
    from storage across a time boundary

DESIGN PRINCIPLES:
  1. True state is (Amount, PaidAmount, PaidAt, DueDate). Status is a
     pure function of that state and the current time.
  2. The payment ledger is authoritative: PaidAmount must equal the sum
     of the invoice's payments at all times.
  3. Precision: decimal.Decimal for every monetary field.

SEE ALSO:
  - status.go: Status derivation and aging buckets
  - engine.go: Invoice creation and payment application
  - outstanding.go: Per-buyer rollup
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/distribution-ledger/order"
)

// =============================================================================
// IDENTIFIERS AND ENUMS
// =============================================================================

type InvoiceID string
type PaymentID string

// Status of an invoice, always derived. See Invoice.StatusAt.
type Status string

const (
	StatusUnpaid  Status = "UNPAID"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
)

// Method is how a payment was made.
type Method string

const (
	MethodCash     Method = "cash"
	MethodTransfer Method = "bank_transfer"
	MethodCheque   Method = "cheque"
	MethodMobile   Method = "mobile"
)

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCheque, MethodMobile:
		return true
	}
	return false
}

// DueOffset is the fixed payment term: due 7 days after order creation.
const DueOffset = 7 * 24 * time.Hour

// =============================================================================
// INVOICE
// =============================================================================

type Invoice struct {
	ID     InvoiceID
	Number string

	// Exactly one order per invoice; the buyer is snapshotted from it.
	OrderID order.OrderID
	BuyerID string

	// Amount is frozen at creation from the order's total. A later
	// order adjustment never changes it; adjusting before issuance is
	// the only path that affects the billed amount.
	Amount decimal.Decimal

	// PaidAmount is the cached rollup of the payment ledger,
	// monotonically non-decreasing, recomputed inside the same
	// transaction as each payment insert.
	PaidAmount decimal.Decimal

	DueDate   time.Time
	PaidAt    *time.Time
	CreatedAt time.Time
}

// Outstanding returns Amount - PaidAmount.
func (inv *Invoice) Outstanding() decimal.Decimal {
	return inv.Amount.Sub(inv.PaidAmount)
}

// Clone returns a deep copy.
func (inv *Invoice) Clone() *Invoice {
	c := *inv
	if inv.PaidAt != nil {
		t := *inv.PaidAt
		c.PaidAt = &t
	}
	return &c
}

// =============================================================================
// PAYMENT
// =============================================================================

type Payment struct {
	ID        PaymentID
	InvoiceID InvoiceID
	Amount    decimal.Decimal
	Date      time.Time
	Method    Method
	CreatedBy string
	Notes     string
	CreatedAt time.Time
}
