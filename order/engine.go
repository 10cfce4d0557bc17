/*
engine.go - Order lifecycle operations

PURPOSE:
  Owns the state machines for both order hierarchies. All mutations go
  through here; the UI layer only ever calls Create, Advance, Adjust,
  Cancel and the read queries.

INVOICE ISSUANCE:
  Advancing into the issuance state (PO_ISSUED / APPROVED) creates the
  order's invoice through the injected InvoiceIssuer. The sequencing is
  the retry-safe design: the status write commits first, then IssueFor
  runs keyed by order id. If issuance fails the caller sees the error
  and retries the same Advance; the engine detects the half-done state
  (order issued, no invoice) and repairs it instead of rejecting. Only
  once the invoice exists does a repeated Advance fail with
  ErrAlreadyIssued.

APPROVAL GATE:
  The outstanding-balance check before approval is a soft,
  human-in-the-loop gate. The caller consults the billing aggregator and
  surfaces a warning; this engine never blocks the transition on
  outstanding balance. Adjust exists as the remediation path
  ("ship less, not nothing").
*/
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/distribution-ledger/clock"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store  Store
	issuer InvoiceIssuer
	clock  clock.Clock
}

func NewEngine(store Store, issuer InvoiceIssuer, clk clock.Clock) *Engine {
	return &Engine{store: store, issuer: issuer, clock: clk}
}

var seriesPrefix = map[Kind]string{
	KindDistributor: "DO",
	KindResale:      "RO",
}

// =============================================================================
// CREATE
// =============================================================================

// Create validates the line set, allocates an order number and persists
// the order in its initial pending state.
//
// For distributor orders the seller is always the central authority;
// any sellerID passed is ignored.
func (e *Engine) Create(ctx context.Context, kind Kind, buyerID, sellerID string, items []LineItem) (*Order, error) {
	if kind != KindDistributor && kind != KindResale {
		return nil, fmt.Errorf("%w: unknown order kind %q", ErrInvalidLineItem, kind)
	}
	if buyerID == "" {
		return nil, fmt.Errorf("%w: buyer is required", ErrInvalidLineItem)
	}
	if kind == KindDistributor {
		sellerID = SellerCentral
	} else if sellerID == "" {
		return nil, fmt.Errorf("%w: seller is required for resale orders", ErrInvalidLineItem)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one line", ErrInvalidLineItem)
	}

	seen := make(map[string]bool, len(items))
	lines := make([]LineItem, 0, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: product reference is required", ErrInvalidLineItem)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for %s", ErrInvalidLineItem, it.ProductID)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: unit price must not be negative for %s", ErrInvalidLineItem, it.ProductID)
		}
		if seen[it.ProductID] {
			return nil, fmt.Errorf("%w: duplicate product %s", ErrInvalidLineItem, it.ProductID)
		}
		seen[it.ProductID] = true
		lines = append(lines, LineItem{
			ProductID: it.ProductID,
			Ordered:   it.Quantity,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	m := MachineFor(kind)
	o := &Order{
		ID:        OrderID(uuid.NewString()),
		Kind:      kind,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Items:     lines,
		Status:    m.Initial(),
		CreatedAt: e.clock.Now(),
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		n, err := s.NextNumber(ctx, seriesPrefix[kind])
		if err != nil {
			return err
		}
		o.Number = fmt.Sprintf("%s-%06d", seriesPrefix[kind], n)
		return s.SaveOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// =============================================================================
// ADVANCE
// =============================================================================

// Advance moves the order one step forward in its chain. Entering the
// issuance state additionally creates the invoice; see the file header
// for the retry contract.
func (e *Engine) Advance(ctx context.Context, id OrderID, target Status) (*Order, error) {
	var out *Order
	err := e.store.WithTx(ctx, func(s Store) error {
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		m := MachineFor(o.Kind)

		if target == m.Issuance() && o.Status != m.Initial() {
			// Either a duplicate advance (invoice exists) or a crashed
			// issuance (status written, invoice missing). Distinguish
			// while holding the order transaction so a concurrent
			// Advance cannot slip between check and repair.
			issued, err := e.issuer.Issued(ctx, o.ID)
			if err != nil {
				return err
			}
			if issued {
				return &AlreadyIssuedError{OrderID: o.ID, Status: o.Status}
			}
			if o.Status == m.Issuance() {
				out = o
				return nil // repair path: re-issue below without a status write
			}
		}

		if err := m.ValidateAdvance(o.ID, o.Status, target); err != nil {
			return err
		}

		now := e.clock.Now()
		o.Status = target
		switch target {
		case m.Issuance():
			o.IssuedAt = &now
		case StatusShipped:
			o.ShippedAt = &now
		case StatusReceived:
			o.ReceivedAt = &now
		}
		if err := s.SaveOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if target == MachineFor(out.Kind).Issuance() {
		if err := e.issuer.IssueFor(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// =============================================================================
// ADJUST
// =============================================================================

// Adjust applies quantity reductions to a pending order. It is
// orthogonal to the state machine: status never changes, the total is
// recomputed from the surviving lines, and the reason is appended to
// the order notes with a timestamp marker.
func (e *Engine) Adjust(ctx context.Context, id OrderID, revisions []Revision, reasonNote string) (*Order, error) {
	var out *Order
	err := e.store.WithTx(ctx, func(s Store) error {
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		m := MachineFor(o.Kind)
		if o.Status != m.Initial() {
			return &AdjustmentNotAllowedError{OrderID: o.ID, Status: o.Status}
		}

		revised, err := applyRevisions(o.Items, revisions)
		if err != nil {
			return err
		}
		if len(revised) == 0 {
			return ErrEmptyAdjustment
		}
		if sameLines(o.Items, revised) {
			return ErrNoOpAdjustment
		}

		o.Items = revised
		o.Notes = appendNote(o.Notes, reasonNote, e.clock.Now())
		if err := s.SaveOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applyRevisions(items []LineItem, revisions []Revision) ([]LineItem, error) {
	byProduct := make(map[string]int, len(items))
	for i, li := range items {
		byProduct[li.ProductID] = i
	}

	remove := make(map[string]bool)
	next := append([]LineItem(nil), items...)
	for _, rev := range revisions {
		i, ok := byProduct[rev.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLine, rev.ProductID)
		}
		if rev.Quantity < 0 {
			return nil, fmt.Errorf("%w: negative quantity for %s", ErrInvalidLineItem, rev.ProductID)
		}
		if rev.Quantity > next[i].Ordered {
			return nil, &QuantityExceedsOriginalError{
				ProductID: rev.ProductID,
				Ordered:   next[i].Ordered,
				Revised:   rev.Quantity,
			}
		}
		if rev.Quantity == 0 {
			remove[rev.ProductID] = true
			continue
		}
		next[i].Quantity = rev.Quantity
		delete(remove, rev.ProductID)
	}

	// A revision to zero removes the line; zero quantities are never stored.
	kept := next[:0]
	for _, li := range next {
		if !remove[li.ProductID] {
			kept = append(kept, li)
		}
	}
	return kept, nil
}

func sameLines(a, b []LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ProductID != b[i].ProductID || a[i].Quantity != b[i].Quantity {
			return false
		}
	}
	return true
}

func appendNote(notes, note string, at time.Time) string {
	entry := fmt.Sprintf("[%s] %s", at.Format(time.RFC3339), note)
	if notes == "" {
		return entry
	}
	return notes + "\n" + entry
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel is only valid from the states the hierarchy's table lists.
// An invoice that already exists (resale orders cancelled from
// APPROVED) is deliberately left untouched: it remains collectible and
// the billing side never learns about the cancellation.
func (e *Engine) Cancel(ctx context.Context, id OrderID) (*Order, error) {
	var out *Order
	err := e.store.WithTx(ctx, func(s Store) error {
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		m := MachineFor(o.Kind)
		if !m.CanCancel(o.Status) {
			return &InvalidTransitionError{OrderID: o.ID, Kind: o.Kind, From: o.Status, To: StatusCancelled}
		}
		o.Status = StatusCancelled
		if err := s.SaveOrder(ctx, o); err != nil {
			return err
		}
		out = o
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

func (e *Engine) Get(ctx context.Context, id OrderID) (*Order, error) {
	return e.store.GetOrder(ctx, id)
}

func (e *Engine) ByBuyer(ctx context.Context, buyerID string) ([]*Order, error) {
	return e.store.OrdersByBuyer(ctx, buyerID)
}

func (e *Engine) ByStatus(ctx context.Context, kind Kind, status Status) ([]*Order, error) {
	return e.store.OrdersByStatus(ctx, kind, status)
}

func (e *Engine) InRange(ctx context.Context, from, to time.Time) ([]*Order, error) {
	return e.store.OrdersInRange(ctx, from, to)
}
