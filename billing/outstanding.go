/*
outstanding.go - Per-buyer outstanding balance rollup

PURPOSE:
  The read-side aggregate the UI consults before approving a new order.
  A pure query with no side effects; OVERDUE reclassification is applied
  at the clock reading of the call even though no write occurred.

  This is a soft gate. The order engine never blocks issuance on
  outstanding balance; a human sees the warning and either approves
  anyway or adjusts the order down.
*/
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/distribution-ledger/clock"
)

// =============================================================================
// AGGREGATE STRUCTURES
// =============================================================================

// OutstandingSummary is the rollup returned to the approval screen.
type OutstandingSummary struct {
	BuyerID string
	AsOf    time.Time

	TotalOutstanding decimal.Decimal
	HasOutstanding   bool

	UnpaidCount  int
	UnpaidAmount decimal.Decimal

	OverdueCount  int
	OverdueAmount decimal.Decimal

	// Contributing invoices, for display.
	Invoices []OutstandingInvoice
}

type OutstandingInvoice struct {
	ID          InvoiceID
	Number      string
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
	DueDate     time.Time
	Status      Status
	Aging       AgingBucket
}

// =============================================================================
// AGGREGATOR
// =============================================================================

type OutstandingAggregator struct {
	store Store
	clock clock.Clock
}

func NewOutstandingAggregator(store Store, clk clock.Clock) *OutstandingAggregator {
	return &OutstandingAggregator{store: store, clock: clk}
}

// OutstandingFor scans the buyer's invoices with derived status UNPAID
// or OVERDUE and rolls up the exposure.
func (a *OutstandingAggregator) OutstandingFor(ctx context.Context, buyerID string) (*OutstandingSummary, error) {
	invoices, err := a.store.InvoicesByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	summary := &OutstandingSummary{
		BuyerID:          buyerID,
		AsOf:             now,
		TotalOutstanding: decimal.Zero,
		UnpaidAmount:     decimal.Zero,
		OverdueAmount:    decimal.Zero,
	}

	for _, inv := range invoices {
		status := inv.StatusAt(now)
		if status == StatusPaid {
			continue
		}
		due := inv.Outstanding()
		summary.TotalOutstanding = summary.TotalOutstanding.Add(due)
		switch status {
		case StatusUnpaid:
			summary.UnpaidCount++
			summary.UnpaidAmount = summary.UnpaidAmount.Add(due)
		case StatusOverdue:
			summary.OverdueCount++
			summary.OverdueAmount = summary.OverdueAmount.Add(due)
		}
		summary.Invoices = append(summary.Invoices, OutstandingInvoice{
			ID:          inv.ID,
			Number:      inv.Number,
			Amount:      inv.Amount,
			Outstanding: due,
			DueDate:     inv.DueDate,
			Status:      status,
			Aging:       inv.AgingAt(now),
		})
	}

	summary.HasOutstanding = summary.TotalOutstanding.IsPositive()
	return summary, nil
}
