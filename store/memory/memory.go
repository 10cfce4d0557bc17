/*
Package memory provides an in-memory implementation of the order,
billing and warehouse store interfaces (for tests and dev).

PURPOSE:
  One Store backs all three domains; Orders(), Billing() and
  Warehouse() return the per-domain views the engines consume.

CONCURRENCY:
  Each domain has its own mutex, so an open order transaction never
  blocks billing reads (the order engine checks invoice existence from
  inside its own transaction). WithTx simulates a database transaction
  with a snapshot that is restored if fn fails.

  Number series survive a rollback on purpose: a consumed number leaves
  a gap, matching how database sequences behave. Order numbers are
  monotonic-looking, not strictly sequential.
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/distribution-ledger/billing"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/warehouse"
)

// =============================================================================
// STORE
// =============================================================================

type Store struct {
	ordersMu sync.Mutex
	orders   map[order.OrderID]*order.Order

	billingMu sync.Mutex
	invoices  map[billing.InvoiceID]*billing.Invoice
	byOrder   map[order.OrderID]billing.InvoiceID
	payments  map[billing.InvoiceID][]*billing.Payment

	warehouseMu sync.Mutex
	entries     []*warehouse.Entry

	seriesMu sync.Mutex
	series   map[string]int64
}

func New() *Store {
	return &Store{
		orders:   make(map[order.OrderID]*order.Order),
		invoices: make(map[billing.InvoiceID]*billing.Invoice),
		byOrder:  make(map[order.OrderID]billing.InvoiceID),
		payments: make(map[billing.InvoiceID][]*billing.Payment),
		series:   make(map[string]int64),
	}
}

// Orders returns the order-domain view.
func (s *Store) Orders() order.Store { return &ordersView{s: s} }

// Billing returns the billing-domain view.
func (s *Store) Billing() billing.Store { return &billingView{s: s} }

// Warehouse returns the warehouse-domain view.
func (s *Store) Warehouse() warehouse.Store { return &warehouseView{s: s} }

func (s *Store) nextNumber(name string) int64 {
	s.seriesMu.Lock()
	defer s.seriesMu.Unlock()
	s.series[name]++
	return s.series[name]
}

// =============================================================================
// ORDER VIEW
// =============================================================================

type ordersView struct {
	s *Store
}

func (v *ordersView) SaveOrder(_ context.Context, o *order.Order) error {
	v.s.ordersMu.Lock()
	defer v.s.ordersMu.Unlock()
	v.s.orders[o.ID] = o.Clone()
	return nil
}

func (v *ordersView) GetOrder(_ context.Context, id order.OrderID) (*order.Order, error) {
	v.s.ordersMu.Lock()
	defer v.s.ordersMu.Unlock()
	return getOrderLocked(v.s, id)
}

func getOrderLocked(s *Store, id order.OrderID) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (v *ordersView) OrdersByBuyer(_ context.Context, buyerID string) ([]*order.Order, error) {
	v.s.ordersMu.Lock()
	defer v.s.ordersMu.Unlock()
	return filterOrders(v.s, func(o *order.Order) bool { return o.BuyerID == buyerID }), nil
}

func (v *ordersView) OrdersByStatus(_ context.Context, kind order.Kind, status order.Status) ([]*order.Order, error) {
	v.s.ordersMu.Lock()
	defer v.s.ordersMu.Unlock()
	return filterOrders(v.s, func(o *order.Order) bool { return o.Kind == kind && o.Status == status }), nil
}

func (v *ordersView) OrdersInRange(_ context.Context, from, to time.Time) ([]*order.Order, error) {
	v.s.ordersMu.Lock()
	defer v.s.ordersMu.Unlock()
	return filterOrders(v.s, func(o *order.Order) bool {
		return !o.CreatedAt.Before(from) && !o.CreatedAt.After(to)
	}), nil
}

func filterOrders(s *Store, keep func(*order.Order) bool) []*order.Order {
	var out []*order.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number < out[j].Number
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (v *ordersView) NextNumber(_ context.Context, series string) (int64, error) {
	return v.s.nextNumber(series), nil
}

// WithTx snapshots the order table and restores it if fn fails.
func (v *ordersView) WithTx(ctx context.Context, fn func(order.Store) error) error {
	v.s.ordersMu.Lock()
	defer v.s.ordersMu.Unlock()

	snapshot := make(map[order.OrderID]*order.Order, len(v.s.orders))
	for k, o := range v.s.orders {
		snapshot[k] = o.Clone()
	}

	if err := fn(&txOrdersView{s: v.s}); err != nil {
		v.s.orders = snapshot
		return err
	}
	return nil
}

// txOrdersView runs with the order mutex already held by WithTx.
type txOrdersView struct {
	s *Store
}

func (v *txOrdersView) SaveOrder(_ context.Context, o *order.Order) error {
	v.s.orders[o.ID] = o.Clone()
	return nil
}

func (v *txOrdersView) GetOrder(_ context.Context, id order.OrderID) (*order.Order, error) {
	return getOrderLocked(v.s, id)
}

func (v *txOrdersView) OrdersByBuyer(_ context.Context, buyerID string) ([]*order.Order, error) {
	return filterOrders(v.s, func(o *order.Order) bool { return o.BuyerID == buyerID }), nil
}

func (v *txOrdersView) OrdersByStatus(_ context.Context, kind order.Kind, status order.Status) ([]*order.Order, error) {
	return filterOrders(v.s, func(o *order.Order) bool { return o.Kind == kind && o.Status == status }), nil
}

func (v *txOrdersView) OrdersInRange(_ context.Context, from, to time.Time) ([]*order.Order, error) {
	return filterOrders(v.s, func(o *order.Order) bool {
		return !o.CreatedAt.Before(from) && !o.CreatedAt.After(to)
	}), nil
}

func (v *txOrdersView) NextNumber(_ context.Context, series string) (int64, error) {
	return v.s.nextNumber(series), nil
}

func (v *txOrdersView) WithTx(ctx context.Context, fn func(order.Store) error) error {
	return fn(v) // already inside a transaction
}

// =============================================================================
// BILLING VIEW
// =============================================================================

type billingView struct {
	s *Store
}

func (v *billingView) SaveInvoice(_ context.Context, inv *billing.Invoice) error {
	v.s.billingMu.Lock()
	defer v.s.billingMu.Unlock()
	return saveInvoiceLocked(v.s, inv)
}

func saveInvoiceLocked(s *Store, inv *billing.Invoice) error {
	if existing, ok := s.byOrder[inv.OrderID]; ok {
		return &billing.DuplicateInvoiceError{OrderID: string(inv.OrderID), Existing: existing}
	}
	s.invoices[inv.ID] = inv.Clone()
	s.byOrder[inv.OrderID] = inv.ID
	return nil
}

func (v *billingView) UpdateInvoice(_ context.Context, inv *billing.Invoice) error {
	v.s.billingMu.Lock()
	defer v.s.billingMu.Unlock()
	return updateInvoiceLocked(v.s, inv)
}

func updateInvoiceLocked(s *Store, inv *billing.Invoice) error {
	if _, ok := s.invoices[inv.ID]; !ok {
		return billing.ErrInvoiceNotFound
	}
	s.invoices[inv.ID] = inv.Clone()
	return nil
}

func (v *billingView) GetInvoice(_ context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	v.s.billingMu.Lock()
	defer v.s.billingMu.Unlock()
	return getInvoiceLocked(v.s, id)
}

func getInvoiceLocked(s *Store, id billing.InvoiceID) (*billing.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	return inv.Clone(), nil
}

func (v *billingView) InvoiceByOrder(_ context.Context, orderID order.OrderID) (*billing.Invoice, error) {
	v.s.billingMu.Lock()
	defer v.s.billingMu.Unlock()
	return invoiceByOrderLocked(v.s, orderID)
}

func invoiceByOrderLocked(s *Store, orderID order.OrderID) (*billing.Invoice, error) {
	id, ok := s.byOrder[orderID]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	return getInvoiceLocked(s, id)
}

func (v *billingView) InvoicesByBuyer(_ context.Context, buyerID string) ([]*billing.Invoice, error) {
	v.s.billingMu.Lock()
	defer v.s.billingMu.Unlock()
	return filterInvoices(v.s, func(inv *billing.Invoice) bool { return inv.BuyerID == buyerID }), nil
}

func (v *billingView) Invoices(_ context.Context) ([]*billing.Invoice, error) {
	v.s.billingMu.Lock()
	defer v.s.billingMu.Unlock()
	return filterInvoices(v.s, func(*billing.Invoice) bool { return true }), nil
}

func filterInvoices(s *Store, keep func(*billing.Invoice) bool) []*billing.Invoice {
	var out []*billing.Invoice
	for _, inv := range s.invoices {
		if keep(inv) {
			out = append(out, inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (v *billingView) AppendPayment(_ context.Context, p *billing.Payment) error {
	v.s.billingMu.Lock()
	defer v.s.billingMu.Unlock()
	return appendPaymentLocked(v.s, p)
}

func appendPaymentLocked(s *Store, p *billing.Payment) error {
	cp := *p
	s.payments[p.InvoiceID] = append(s.payments[p.InvoiceID], &cp)
	return nil
}

func (v *billingView) PaymentsByInvoice(_ context.Context, id billing.InvoiceID) ([]*billing.Payment, error) {
	v.s.billingMu.Lock()
	defer v.s.billingMu.Unlock()
	return paymentsLocked(v.s, id), nil
}

func paymentsLocked(s *Store, id billing.InvoiceID) []*billing.Payment {
	out := make([]*billing.Payment, 0, len(s.payments[id]))
	for _, p := range s.payments[id] {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (v *billingView) NextNumber(_ context.Context, series string) (int64, error) {
	return v.s.nextNumber(series), nil
}

// WithTx snapshots invoices and payments and restores them if fn fails.
func (v *billingView) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	v.s.billingMu.Lock()
	defer v.s.billingMu.Unlock()

	invSnap := make(map[billing.InvoiceID]*billing.Invoice, len(v.s.invoices))
	for k, inv := range v.s.invoices {
		invSnap[k] = inv.Clone()
	}
	orderSnap := make(map[order.OrderID]billing.InvoiceID, len(v.s.byOrder))
	for k, id := range v.s.byOrder {
		orderSnap[k] = id
	}
	paySnap := make(map[billing.InvoiceID][]*billing.Payment, len(v.s.payments))
	for k, ps := range v.s.payments {
		paySnap[k] = append([]*billing.Payment(nil), ps...)
	}

	if err := fn(&txBillingView{s: v.s}); err != nil {
		v.s.invoices = invSnap
		v.s.byOrder = orderSnap
		v.s.payments = paySnap
		return err
	}
	return nil
}

// txBillingView runs with the billing mutex already held by WithTx.
type txBillingView struct {
	s *Store
}

func (v *txBillingView) SaveInvoice(_ context.Context, inv *billing.Invoice) error {
	return saveInvoiceLocked(v.s, inv)
}

func (v *txBillingView) UpdateInvoice(_ context.Context, inv *billing.Invoice) error {
	return updateInvoiceLocked(v.s, inv)
}

func (v *txBillingView) GetInvoice(_ context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	return getInvoiceLocked(v.s, id)
}

func (v *txBillingView) InvoiceByOrder(_ context.Context, orderID order.OrderID) (*billing.Invoice, error) {
	return invoiceByOrderLocked(v.s, orderID)
}

func (v *txBillingView) InvoicesByBuyer(_ context.Context, buyerID string) ([]*billing.Invoice, error) {
	return filterInvoices(v.s, func(inv *billing.Invoice) bool { return inv.BuyerID == buyerID }), nil
}

func (v *txBillingView) Invoices(_ context.Context) ([]*billing.Invoice, error) {
	return filterInvoices(v.s, func(*billing.Invoice) bool { return true }), nil
}

func (v *txBillingView) AppendPayment(_ context.Context, p *billing.Payment) error {
	return appendPaymentLocked(v.s, p)
}

func (v *txBillingView) PaymentsByInvoice(_ context.Context, id billing.InvoiceID) ([]*billing.Payment, error) {
	return paymentsLocked(v.s, id), nil
}

func (v *txBillingView) NextNumber(_ context.Context, series string) (int64, error) {
	return v.s.nextNumber(series), nil
}

func (v *txBillingView) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	return fn(v) // already inside a transaction
}

// =============================================================================
// WAREHOUSE VIEW
// =============================================================================

type warehouseView struct {
	s *Store
}

// Append inserts in entry-date order. Binary search for the insertion
// point keeps reads free of any sorting.
func (v *warehouseView) Append(_ context.Context, e *warehouse.Entry) error {
	v.s.warehouseMu.Lock()
	defer v.s.warehouseMu.Unlock()

	cp := *e
	entries := v.s.entries
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Date.After(cp.Date)
	})
	entries = append(entries, nil)
	copy(entries[i+1:], entries[i:])
	entries[i] = &cp
	v.s.entries = entries
	return nil
}

func (v *warehouseView) GetEntry(_ context.Context, id string) (*warehouse.Entry, error) {
	v.s.warehouseMu.Lock()
	defer v.s.warehouseMu.Unlock()
	for _, e := range v.s.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, warehouse.ErrEntryNotFound
}

func (v *warehouseView) Entries(_ context.Context) ([]*warehouse.Entry, error) {
	v.s.warehouseMu.Lock()
	defer v.s.warehouseMu.Unlock()
	return copyEntries(v.s.entries, func(*warehouse.Entry) bool { return true }), nil
}

func (v *warehouseView) EntriesByLocation(_ context.Context, location string) ([]*warehouse.Entry, error) {
	v.s.warehouseMu.Lock()
	defer v.s.warehouseMu.Unlock()
	return copyEntries(v.s.entries, func(e *warehouse.Entry) bool { return e.Location == location }), nil
}

func copyEntries(entries []*warehouse.Entry, keep func(*warehouse.Entry) bool) []*warehouse.Entry {
	var out []*warehouse.Entry
	for _, e := range entries {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}
