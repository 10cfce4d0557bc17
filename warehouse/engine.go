/*
engine.go - Stock ledger operations

PURPOSE:
  Record/Reverse append to the ledger; StockOf and StockSummary replay
  it; PendingBatches joins two projections of it.

BATCH CORRELATION:
  A production run first draws raw material (CONSUMPTION entries tagged
  with a batch id) and only later logs its finished-good yield
  (PRODUCTION entries with the same id). A batch is pending while it has
  consumption entries and no production entry, and fulfilled the instant
  ANY matching production entry exists - partial yield is still
  fulfilled, not partially pending. The join is a set difference between
  the consumption and production projections, recomputed on every query.
*/
package warehouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/distribution-ledger/clock"
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

// =============================================================================
// WRITES
// =============================================================================

// Record validates and appends one ledger entry. There is deliberately
// no negative-stock check: the ledger accepts what the warehouse crew
// counted and reconciliation happens after the fact.
func (e *Engine) Record(ctx context.Context, entry Entry) (*Entry, error) {
	if entry.Location == "" {
		return nil, fmt.Errorf("%w: location is required", ErrInvalidEntry)
	}
	if !ValidType(entry.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, entry.Type)
	}
	if entry.Product == "" && entry.Category == "" {
		return nil, fmt.Errorf("%w: product or category is required", ErrInvalidEntry)
	}
	if entry.Quantity.IsNegative() {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidEntry)
	}
	if entry.HeadCount < 0 {
		return nil, fmt.Errorf("%w: head count must not be negative", ErrInvalidEntry)
	}
	if entry.BatchID != "" && entry.Type != TypeConsumption && entry.Type != TypeProduction {
		return nil, ErrBatchNotAllowed
	}

	entry.ID = uuid.NewString()
	entry.ReversalOf = ""
	entry.CreatedAt = e.clock.Now()
	if entry.Date.IsZero() {
		entry.Date = entry.CreatedAt
	}
	if err := e.store.Append(ctx, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Reverse appends the compensating entry for an earlier one: same type
// and payload, negated quantity, so the replay nets to zero. The batch
// id is dropped on the compensating entry - a reversal must never
// fulfil a pending batch or count as a fresh draw.
func (e *Engine) Reverse(ctx context.Context, entryID, reason, createdBy string) (*Entry, error) {
	orig, err := e.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if orig.ReversalOf != "" {
		// A compensating entry is itself immutable history. Undoing a
		// mistaken reversal means recording the movement again.
		return nil, fmt.Errorf("%w: entry %s is a reversal", ErrInvalidEntry, orig.ID)
	}
	all, err := e.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	for _, x := range all {
		if x.ReversalOf == orig.ID {
			return nil, fmt.Errorf("%w: by %s", ErrAlreadyReversed, x.ID)
		}
	}

	now := e.clock.Now()
	comp := &Entry{
		ID:          uuid.NewString(),
		Location:    orig.Location,
		Type:        orig.Type,
		Date:        now,
		Product:     orig.Product,
		Category:    orig.Category,
		SubType:     orig.SubType,
		Quantity:    orig.Quantity.Neg(),
		Unit:        orig.Unit,
		HeadCount:   -orig.HeadCount,
		Weight:      orig.Weight.Neg(),
		Destination: reason,
		ReversalOf:  orig.ID,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}
	if err := e.store.Append(ctx, comp); err != nil {
		return nil, err
	}
	return comp, nil
}

// =============================================================================
// STOCK REPLAY
// =============================================================================

// StockOf computes stock on hand for (location, key) by replaying the
// ledger: inbound + production - outbound - consumption. A pure fold;
// nothing is cached, so the figure can never drift from the ledger.
func (e *Engine) StockOf(ctx context.Context, location string, key ProductKey) (decimal.Decimal, error) {
	entries, err := e.store.EntriesByLocation(ctx, location)
	if err != nil {
		return decimal.Zero, err
	}
	stock := decimal.Zero
	for _, entry := range entries {
		if !entry.Matches(location, key) {
			continue
		}
		delta := entry.Quantity
		if direction(entry.Type) < 0 {
			delta = delta.Neg()
		}
		stock = stock.Add(delta)
	}
	return stock, nil
}

// StockLevel is one row of a per-location stock summary.
type StockLevel struct {
	Product  string
	Category string
	SubType  string
	Unit     string
	OnHand   decimal.Decimal
}

// StockSummary replays one location's ledger grouped by product key.
// This is the read model the reporting screens consume.
func (e *Engine) StockSummary(ctx context.Context, location string) ([]StockLevel, error) {
	entries, err := e.store.EntriesByLocation(ctx, location)
	if err != nil {
		return nil, err
	}

	type groupKey struct{ product, subType string }
	levels := make(map[groupKey]*StockLevel)
	var order []groupKey
	for _, entry := range entries {
		k := groupKey{entry.Product, entry.SubType}
		lv, ok := levels[k]
		if !ok {
			lv = &StockLevel{
				Product:  entry.Product,
				Category: entry.Category,
				SubType:  entry.SubType,
				Unit:     entry.Unit,
			}
			levels[k] = lv
			order = append(order, k)
		}
		delta := entry.Quantity
		if direction(entry.Type) < 0 {
			delta = delta.Neg()
		}
		lv.OnHand = lv.OnHand.Add(delta)
	}

	out := make([]StockLevel, 0, len(order))
	for _, k := range order {
		out = append(out, *levels[k])
	}
	return out, nil
}

// =============================================================================
// BATCH CORRELATION
// =============================================================================

// PendingBatch describes raw material drawn for a production run whose
// yield has not been logged yet.
type PendingBatch struct {
	BatchID      string
	Category     string
	SubType      string
	EarliestDate time.Time
	Lines        int
}

// PendingBatches returns batch ids present on at least one CONSUMPTION
// entry and absent from every PRODUCTION entry, ordered by earliest
// draw date. Recomputed on every call.
func (e *Engine) PendingBatches(ctx context.Context) ([]PendingBatch, error) {
	entries, err := e.store.Entries(ctx)
	if err != nil {
		return nil, err
	}

	fulfilled := make(map[string]bool)
	for _, entry := range entries {
		if entry.Type == TypeProduction && entry.BatchID != "" {
			fulfilled[entry.BatchID] = true
		}
	}

	pending := make(map[string]*PendingBatch)
	for _, entry := range entries {
		if entry.Type != TypeConsumption || entry.BatchID == "" || fulfilled[entry.BatchID] {
			continue
		}
		b, ok := pending[entry.BatchID]
		if !ok {
			b = &PendingBatch{
				BatchID:      entry.BatchID,
				Category:     entry.Category,
				SubType:      entry.SubType,
				EarliestDate: entry.Date,
			}
			pending[entry.BatchID] = b
		}
		b.Lines++
		if entry.Date.Before(b.EarliestDate) {
			b.EarliestDate = entry.Date
			b.Category = entry.Category
			b.SubType = entry.SubType
		}
	}

	out := make([]PendingBatch, 0, len(pending))
	for _, b := range pending {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EarliestDate.Equal(out[j].EarliestDate) {
			return out[i].BatchID < out[j].BatchID
		}
		return out[i].EarliestDate.Before(out[j].EarliestDate)
	})
	return out, nil
}

// GenerateBatchID produces a human-legible, time-derived identifier.
// Advisory only: collisions within the same minute are accepted, it is
// not a primary key.
func (e *Engine) GenerateBatchID() string {
	return "B" + e.clock.Now().Format("20060102-1504")
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) Entries(ctx context.Context, location string) ([]*Entry, error) {
	if location == "" {
		return e.store.Entries(ctx)
	}
	return e.store.EntriesByLocation(ctx, location)
}
