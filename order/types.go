/*
Package order implements the multi-stage order lifecycle engine.

PURPOSE:
  Two parallel order hierarchies flow through this package: distributor
  orders placed by a reseller against the central authority, and resale
  orders placed by a sub-reseller against a reseller. Both share one
  generic state machine parameterized by its transition table, plus
  quantity-reduction adjustment semantics and derived monetary totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind: Which hierarchy an order belongs to (distributor vs resale)
  - Status: Lifecycle states shared across both hierarchies
  - LineItem: Product, quantity (current and as-ordered), unit price
  - Order: The aggregate; TotalAmount is always derived from lines

DESIGN PRINCIPLES:
  1. Derived totals: TotalAmount is computed, never stored. The sum of
     line subtotals can never drift from the total.
  2. Reduction-only adjustment: a line keeps its quantity at creation
     (Ordered) so every later revision can be checked against it.
  3. Precision: unit prices and totals use decimal.Decimal.

SEE ALSO:
  - machine.go: Transition tables and adjacency validation
  - engine.go: Create/Advance/Adjust/Cancel operations
*/
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS AND ENUMS
// =============================================================================

type OrderID string

// Kind distinguishes the two order hierarchies.
type Kind string

const (
	// KindDistributor: reseller buys from the central authority.
	KindDistributor Kind = "distributor"
	// KindResale: sub-reseller buys from a reseller.
	KindResale Kind = "resale"
)

// Status is an order lifecycle state. The two hierarchies use disjoint
// pre-issuance states but share the tail of the chain.
type Status string

const (
	// Distributor chain
	StatusPendingCentral Status = "PENDING_CENTRAL"
	StatusPOIssued       Status = "PO_ISSUED"

	// Resale chain
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"

	// Shared tail
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusReceived   Status = "RECEIVED"

	// Terminal, reachable only from cancellable states
	StatusCancelled Status = "CANCELLED"
)

// SellerCentral is the implicit seller reference for distributor orders.
const SellerCentral = "central"

// =============================================================================
// LINE ITEM
// =============================================================================

// LineItem is one product position on an order.
//
// Ordered is the quantity at order creation and never changes; Quantity
// is the current (possibly reduced) quantity. Adjustments may only move
// Quantity down, and a revision to zero removes the line entirely -
// a zero quantity is never stored.
type LineItem struct {
	ProductID string
	Ordered   int
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns Quantity x UnitPrice.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Revision is a requested quantity change for one line. Lines not named
// by any revision are left unchanged; a quantity of zero removes the line.
type Revision struct {
	ProductID string
	Quantity  int
}

// =============================================================================
// ORDER AGGREGATE
// =============================================================================

type Order struct {
	ID     OrderID
	Number string
	Kind   Kind

	BuyerID  string
	SellerID string

	Items []LineItem

	Status Status

	// Notes are append-only; Adjust prefixes each entry with a timestamp.
	Notes string

	// Lifecycle timestamps, each set exactly once and monotonically
	// increasing when present.
	CreatedAt  time.Time
	IssuedAt   *time.Time
	ShippedAt  *time.Time
	ReceivedAt *time.Time
}

// TotalAmount is derived from the current line items on every call. It
// is intentionally not a stored field.
func (o *Order) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// Line returns the line for a product, or nil.
func (o *Order) Line(productID string) *LineItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate an aggregate behind the engine's back.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.IssuedAt = cloneTime(o.IssuedAt)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.ReceivedAt = cloneTime(o.ReceivedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
