package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/distribution-ledger/billing"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/store/sqlite"
	"github.com/warp/distribution-ledger/warehouse"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	// A file per test: ":memory:" would give each pooled connection its
	// own database.
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleOrder(id, number string) *order.Order {
	created := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	return &order.Order{
		ID:       order.OrderID(id),
		Number:   number,
		Kind:     order.KindDistributor,
		BuyerID:  "reseller-1",
		SellerID: order.SellerCentral,
		Items: []order.LineItem{
			{ProductID: "rice-25kg", Ordered: 10, Quantity: 10, UnitPrice: dec("100.50")},
			{ProductID: "oil-5l", Ordered: 5, Quantity: 5, UnitPrice: dec("200")},
		},
		Status:    order.StatusPendingCentral,
		CreatedAt: created,
	}
}

// =============================================================================
// ORDERS
// =============================================================================

func TestOrders_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	orders := store.Orders()
	ctx := context.Background()

	o := sampleOrder("o-1", "DO-000001")
	require.NoError(t, orders.SaveOrder(ctx, o))

	got, err := orders.GetOrder(ctx, "o-1")
	require.NoError(t, err)

	assert.Equal(t, o.Number, got.Number)
	assert.Equal(t, o.Kind, got.Kind)
	assert.Equal(t, o.Status, got.Status)
	assert.Equal(t, o.CreatedAt, got.CreatedAt)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "rice-25kg", got.Items[0].ProductID, "line order is preserved")
	assert.True(t, got.Items[0].UnitPrice.Equal(dec("100.50")), "decimal survives the round trip exactly")
	assert.Nil(t, got.IssuedAt)
}

func TestOrders_SaveReplacesLines(t *testing.T) {
	// GIVEN: A stored order with two lines
	// WHEN: Saving it again with one line removed and a timestamp set
	// THEN: The read reflects the replacement, not a merge

	store := newTestStore(t)
	orders := store.Orders()
	ctx := context.Background()

	o := sampleOrder("o-1", "DO-000001")
	require.NoError(t, orders.SaveOrder(ctx, o))

	issued := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	o.Items = o.Items[:1]
	o.Items[0].Quantity = 4
	o.Status = order.StatusPOIssued
	o.IssuedAt = &issued
	require.NoError(t, orders.SaveOrder(ctx, o))

	got, err := orders.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 4, got.Items[0].Quantity)
	assert.Equal(t, 10, got.Items[0].Ordered)
	require.NotNil(t, got.IssuedAt)
	assert.Equal(t, issued, *got.IssuedAt)
}

func TestOrders_GetMissing_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Orders().GetOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestOrders_Queries(t *testing.T) {
	store := newTestStore(t)
	orders := store.Orders()
	ctx := context.Background()

	a := sampleOrder("o-1", "DO-000001")
	b := sampleOrder("o-2", "DO-000002")
	b.BuyerID = "reseller-2"
	b.Status = order.StatusPOIssued
	b.CreatedAt = a.CreatedAt.AddDate(0, 0, 3)
	require.NoError(t, orders.SaveOrder(ctx, a))
	require.NoError(t, orders.SaveOrder(ctx, b))

	byBuyer, err := orders.OrdersByBuyer(ctx, "reseller-1")
	require.NoError(t, err)
	require.Len(t, byBuyer, 1)
	assert.Equal(t, order.OrderID("o-1"), byBuyer[0].ID)

	byStatus, err := orders.OrdersByStatus(ctx, order.KindDistributor, order.StatusPOIssued)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, order.OrderID("o-2"), byStatus[0].ID)

	inRange, err := orders.OrdersInRange(ctx, a.CreatedAt, a.CreatedAt.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, order.OrderID("o-1"), inRange[0].ID)
}

func TestOrders_RangeAtFractionalSecondBoundary(t *testing.T) {
	// GIVEN: An order created at 23:59:59.99, just inside the day
	// WHEN: Querying the full day with an end-of-day bound of
	//       23:59:59.999999999
	// THEN: The order is found. Encoded times must compare by string the
	//       same way they compare as times, so the fractional part is
	//       stored zero-padded.

	store := newTestStore(t)
	orders := store.Orders()
	ctx := context.Background()

	dayStart := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	o := sampleOrder("o-late", "DO-000009")
	o.CreatedAt = dayStart.Add(24*time.Hour - 10*time.Millisecond)
	require.NoError(t, orders.SaveOrder(ctx, o))

	inRange, err := orders.OrdersInRange(ctx, dayStart, dayStart.Add(24*time.Hour-time.Nanosecond))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, order.OrderID("o-late"), inRange[0].ID)

	got, err := orders.GetOrder(ctx, "o-late")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(o.CreatedAt))
}

func TestOrders_WithTxRollback(t *testing.T) {
	// GIVEN: A transaction that saves an order and then fails
	// THEN: Nothing is visible afterwards

	store := newTestStore(t)
	orders := store.Orders()
	ctx := context.Background()

	boom := errors.New("boom")
	err := orders.WithTx(ctx, func(s order.Store) error {
		if err := s.SaveOrder(ctx, sampleOrder("o-1", "DO-000001")); err != nil {
			return err
		}
		if _, err := s.NextNumber(ctx, "DO"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = orders.GetOrder(ctx, "o-1")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	// The series allocation rolled back too: the next number is 1 again.
	n, err := orders.NextNumber(ctx, "DO")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNextNumber_SeriesAreIndependent(t *testing.T) {
	store := newTestStore(t)
	orders := store.Orders()
	ctx := context.Background()

	n1, err := orders.NextNumber(ctx, "DO")
	require.NoError(t, err)
	n2, err := orders.NextNumber(ctx, "DO")
	require.NoError(t, err)
	r1, err := orders.NextNumber(ctx, "RO")
	require.NoError(t, err)

	assert.Equal(t, int64(1), n1)
	assert.Equal(t, int64(2), n2)
	assert.Equal(t, int64(1), r1)
}

// =============================================================================
// INVOICES AND PAYMENTS
// =============================================================================

func sampleInvoice(id, number, orderID string) *billing.Invoice {
	created := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	return &billing.Invoice{
		ID:         billing.InvoiceID(id),
		Number:     number,
		OrderID:    order.OrderID(orderID),
		BuyerID:    "reseller-1",
		Amount:     dec("1400"),
		PaidAmount: decimal.Zero,
		DueDate:    created.AddDate(0, 0, 7),
		CreatedAt:  created,
	}
}

func TestInvoices_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bs := store.Billing()

	require.NoError(t, store.Orders().SaveOrder(ctx, sampleOrder("o-1", "DO-000001")))
	inv := sampleInvoice("inv-1", "INV-000001", "o-1")
	require.NoError(t, bs.SaveInvoice(ctx, inv))

	got, err := bs.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("1400")))
	assert.Equal(t, inv.DueDate, got.DueDate)

	byOrder, err := bs.InvoiceByOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceID("inv-1"), byOrder.ID)

	_, err = bs.InvoiceByOrder(ctx, "o-2")
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
}

func TestInvoices_OnePerOrderEnforced(t *testing.T) {
	// The order_id UNIQUE constraint backs the issuance idempotency
	// check even if two processes race past the read.

	store := newTestStore(t)
	ctx := context.Background()
	bs := store.Billing()

	require.NoError(t, store.Orders().SaveOrder(ctx, sampleOrder("o-1", "DO-000001")))
	require.NoError(t, bs.SaveInvoice(ctx, sampleInvoice("inv-1", "INV-000001", "o-1")))

	err := bs.SaveInvoice(ctx, sampleInvoice("inv-2", "INV-000002", "o-1"))
	assert.ErrorIs(t, err, billing.ErrDuplicateInvoice)
}

func TestInvoices_UpdateRollup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bs := store.Billing()

	require.NoError(t, store.Orders().SaveOrder(ctx, sampleOrder("o-1", "DO-000001")))
	inv := sampleInvoice("inv-1", "INV-000001", "o-1")
	require.NoError(t, bs.SaveInvoice(ctx, inv))

	paidAt := time.Date(2025, time.June, 3, 12, 0, 0, 0, time.UTC)
	inv.PaidAmount = dec("1400")
	inv.PaidAt = &paidAt
	require.NoError(t, bs.UpdateInvoice(ctx, inv))

	got, err := bs.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, got.PaidAmount.Equal(dec("1400")))
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, paidAt, *got.PaidAt)

	missing := sampleInvoice("inv-9", "INV-000009", "o-9")
	assert.ErrorIs(t, bs.UpdateInvoice(ctx, missing), billing.ErrInvoiceNotFound)
}

func TestPayments_AppendAndReadInOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bs := store.Billing()

	require.NoError(t, store.Orders().SaveOrder(ctx, sampleOrder("o-1", "DO-000001")))
	require.NoError(t, bs.SaveInvoice(ctx, sampleInvoice("inv-1", "INV-000001", "o-1")))

	base := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	for i, amount := range []string{"300", "700"} {
		p := &billing.Payment{
			ID:        billing.PaymentID([]string{"p-1", "p-2"}[i]),
			InvoiceID: "inv-1",
			Amount:    dec(amount),
			Date:      base.Add(time.Duration(i) * time.Hour),
			Method:    billing.MethodCash,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, bs.AppendPayment(ctx, p))
	}

	payments, err := bs.PaymentsByInvoice(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.True(t, payments[0].Amount.Equal(dec("300")))
	assert.True(t, payments[1].Amount.Equal(dec("700")))
}

// =============================================================================
// WAREHOUSE ENTRIES
// =============================================================================

func TestWarehouse_AppendAndReplayOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ws := store.Warehouse()

	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, day int, typ warehouse.EntryType, quantity string) *warehouse.Entry {
		return &warehouse.Entry{
			ID:        id,
			Location:  "central",
			Type:      typ,
			Date:      base.AddDate(0, 0, day),
			Product:   "rice-25kg",
			Quantity:  dec(quantity),
			Unit:      "bag",
			CreatedAt: base,
		}
	}

	// Appended out of date order; reads come back date-sorted.
	require.NoError(t, ws.Append(ctx, mk("e-2", 2, warehouse.TypeOutbound, "30")))
	require.NoError(t, ws.Append(ctx, mk("e-1", 1, warehouse.TypeInbound, "100")))

	entries, err := ws.EntriesByLocation(ctx, "central")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e-1", entries[0].ID)
	assert.Equal(t, "e-2", entries[1].ID)

	got, err := ws.GetEntry(ctx, "e-1")
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("100")))
	assert.Equal(t, warehouse.TypeInbound, got.Type)

	_, err = ws.GetEntry(ctx, "nope")
	assert.ErrorIs(t, err, warehouse.ErrEntryNotFound)
}

func TestWarehouse_LocationFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ws := store.Warehouse()

	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	central := &warehouse.Entry{ID: "e-1", Location: "central", Type: warehouse.TypeInbound,
		Date: base, Product: "rice-25kg", Quantity: dec("10"), CreatedAt: base}
	branch := &warehouse.Entry{ID: "e-2", Location: "branch-1", Type: warehouse.TypeInbound,
		Date: base, Product: "rice-25kg", Quantity: dec("5"), CreatedAt: base}
	require.NoError(t, ws.Append(ctx, central))
	require.NoError(t, ws.Append(ctx, branch))

	all, err := ws.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := ws.EntriesByLocation(ctx, "branch-1")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "e-2", only[0].ID)
}
