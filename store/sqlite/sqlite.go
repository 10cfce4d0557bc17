/*
Package sqlite provides the SQLite-backed implementation of the order,
billing and warehouse store interfaces.

PURPOSE:
  One Store owns the database; Orders(), Billing() and Warehouse()
  return the per-domain views the engines consume. In production the
  same patterns apply to PostgreSQL - only minor dialect differences.

APPEND-ONLY ENFORCEMENT:
  warehouse_entries and payments have no UPDATE or DELETE paths.
  Corrections are compensating entries; invoice rollups are the only
  mutable billing columns.

KEY TABLES:
  orders / order_lines:  mutable aggregates, total always derived
  invoices / payments:   invoice rollup + append-only payment ledger
  warehouse_entries:     immutable stock ledger
  number_series:         per-prefix document number allocation

CONCURRENCY:
  WithTx wraps fn in a database transaction; SQLite's single-writer
  model serializes concurrent read-modify-write cycles against the same
  aggregate. WAL mode keeps readers unblocked while a writer commits,
  which the order engine relies on when it checks invoice existence
  from inside an order transaction.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/distribution-ledger/billing"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/warehouse"
)

// Store owns the database handle and hands out per-domain views.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the database at dbPath. Prefer a file path;
// ":memory:" gives every pooled connection its own database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		issued_at TEXT,
		shipped_at TEXT,
		received_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id);
	CREATE INDEX IF NOT EXISTS idx_orders_kind_status ON orders(kind, status);
	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

	CREATE TABLE IF NOT EXISTS order_lines (
		order_id TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		ordered INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		PRIMARY KEY (order_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		order_id TEXT NOT NULL UNIQUE REFERENCES orders(id),
		buyer_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		paid_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_buyer ON invoices(buyer_id);

	-- Append-only payment ledger. No UPDATE, no DELETE. Ever.
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		amount TEXT NOT NULL,
		paid_on TEXT NOT NULL,
		method TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id);

	-- Append-only stock ledger. No UPDATE, no DELETE. Ever.
	CREATE TABLE IF NOT EXISTS warehouse_entries (
		id TEXT PRIMARY KEY,
		location TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		product TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		sub_type TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		head_count INTEGER NOT NULL DEFAULT 0,
		weight TEXT NOT NULL,
		supplier_ref TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		batch_id TEXT NOT NULL DEFAULT '',
		reversal_of TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_location ON warehouse_entries(location);
	CREATE INDEX IF NOT EXISTS idx_entries_batch ON warehouse_entries(batch_id) WHERE batch_id != '';
	CREATE INDEX IF NOT EXISTS idx_entries_date ON warehouse_entries(entry_date);

	CREATE TABLE IF NOT EXISTS number_series (
		name TEXT PRIMARY KEY,
		next INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TIME AND DECIMAL SERIALIZATION
// =============================================================================

// timeColumnFormat keeps the fractional seconds zero-padded so stored
// strings sort the same way the times they encode do. RFC3339Nano trims
// trailing zeros and breaks ORDER BY and range comparisons.
const timeColumnFormat = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string { return t.UTC().Format(timeColumnFormat) }

func decodeTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func nextNumber(ctx context.Context, db querier, series string) (int64, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO number_series (name, next) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET next = next + 1`, series)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, `SELECT next FROM number_series WHERE name = ?`, series).Scan(&n)
	return n, err
}

// =============================================================================
// ORDER VIEW
// =============================================================================

// Orders returns the order-domain view.
func (s *Store) Orders() order.Store {
	return &ordersView{db: s.db, root: s.db}
}

type ordersView struct {
	db   querier
	root *sql.DB // nil when already inside a transaction
}

func (v *ordersView) WithTx(ctx context.Context, fn func(order.Store) error) error {
	if v.root == nil {
		return fn(v) // already inside a transaction
	}
	tx, err := v.root.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&ordersView{db: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (v *ordersView) NextNumber(ctx context.Context, series string) (int64, error) {
	return nextNumber(ctx, v.db, series)
}

// SaveOrder replaces the order row and its full line set. Call inside
// WithTx; the engine always does.
func (v *ordersView) SaveOrder(ctx context.Context, o *order.Order) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO orders (id, number, kind, buyer_id, seller_id, status, notes, created_at, issued_at, shipped_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			notes = excluded.notes,
			issued_at = excluded.issued_at,
			shipped_at = excluded.shipped_at,
			received_at = excluded.received_at`,
		string(o.ID), o.Number, string(o.Kind), o.BuyerID, o.SellerID, string(o.Status), o.Notes,
		encodeTime(o.CreatedAt), encodeTimePtr(o.IssuedAt), encodeTimePtr(o.ShippedAt), encodeTimePtr(o.ReceivedAt))
	if err != nil {
		return err
	}

	if _, err := v.db.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = ?`, string(o.ID)); err != nil {
		return err
	}
	for _, li := range o.Items {
		_, err := v.db.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, ordered, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			string(o.ID), li.ProductID, li.Ordered, li.Quantity, li.UnitPrice.String())
		if err != nil {
			return err
		}
	}
	return nil
}

const orderColumns = `id, number, kind, buyer_id, seller_id, status, notes, created_at, issued_at, shipped_at, received_at`

func (v *ordersView) GetOrder(ctx context.Context, id order.OrderID) (*order.Order, error) {
	row := v.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := v.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (v *ordersView) OrdersByBuyer(ctx context.Context, buyerID string) ([]*order.Order, error) {
	return v.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE buyer_id = ? ORDER BY created_at, number`, buyerID)
}

func (v *ordersView) OrdersByStatus(ctx context.Context, kind order.Kind, status order.Status) ([]*order.Order, error) {
	return v.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE kind = ? AND status = ? ORDER BY created_at, number`,
		string(kind), string(status))
}

func (v *ordersView) OrdersInRange(ctx context.Context, from, to time.Time) ([]*order.Order, error) {
	return v.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE created_at >= ? AND created_at <= ? ORDER BY created_at, number`,
		encodeTime(from), encodeTime(to))
}

func (v *ordersView) queryOrders(ctx context.Context, query string, args ...any) ([]*order.Order, error) {
	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range out {
		if err := v.loadLines(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (v *ordersView) loadLines(ctx context.Context, o *order.Order) error {
	rows, err := v.db.QueryContext(ctx, `
		SELECT product_id, ordered, quantity, unit_price
		FROM order_lines WHERE order_id = ? ORDER BY rowid`, string(o.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var li order.LineItem
		var price string
		if err := rows.Scan(&li.ProductID, &li.Ordered, &li.Quantity, &price); err != nil {
			return err
		}
		if li.UnitPrice, err = decodeDecimal(price); err != nil {
			return err
		}
		o.Items = append(o.Items, li)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var id, kind, status, createdAt string
	var issuedAt, shippedAt, receivedAt sql.NullString
	err := row.Scan(&id, &o.Number, &kind, &o.BuyerID, &o.SellerID, &status, &o.Notes,
		&createdAt, &issuedAt, &shippedAt, &receivedAt)
	if err != nil {
		return nil, err
	}
	o.ID = order.OrderID(id)
	o.Kind = order.Kind(kind)
	o.Status = order.Status(status)
	if o.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if o.IssuedAt, err = decodeTimePtr(issuedAt); err != nil {
		return nil, err
	}
	if o.ShippedAt, err = decodeTimePtr(shippedAt); err != nil {
		return nil, err
	}
	if o.ReceivedAt, err = decodeTimePtr(receivedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// =============================================================================
// BILLING VIEW
// =============================================================================

// Billing returns the billing-domain view.
func (s *Store) Billing() billing.Store {
	return &billingView{db: s.db, root: s.db}
}

type billingView struct {
	db   querier
	root *sql.DB // nil when already inside a transaction
}

func (v *billingView) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	if v.root == nil {
		return fn(v) // already inside a transaction
	}
	tx, err := v.root.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&billingView{db: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (v *billingView) NextNumber(ctx context.Context, series string) (int64, error) {
	return nextNumber(ctx, v.db, series)
}

func (v *billingView) SaveInvoice(ctx context.Context, inv *billing.Invoice) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO invoices (id, number, order_id, buyer_id, amount, paid_amount, due_date, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(inv.ID), inv.Number, string(inv.OrderID), inv.BuyerID,
		inv.Amount.String(), inv.PaidAmount.String(),
		encodeTime(inv.DueDate), encodeTimePtr(inv.PaidAt), encodeTime(inv.CreatedAt))
	if isUniqueViolation(err) {
		return &billing.DuplicateInvoiceError{OrderID: string(inv.OrderID)}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// UpdateInvoice rewrites only the cached rollup columns.
func (v *billingView) UpdateInvoice(ctx context.Context, inv *billing.Invoice) error {
	res, err := v.db.ExecContext(ctx, `
		UPDATE invoices SET paid_amount = ?, paid_at = ? WHERE id = ?`,
		inv.PaidAmount.String(), encodeTimePtr(inv.PaidAt), string(inv.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

const invoiceColumns = `id, number, order_id, buyer_id, amount, paid_amount, due_date, paid_at, created_at`

func (v *billingView) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	return v.oneInvoice(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, string(id))
}

func (v *billingView) InvoiceByOrder(ctx context.Context, orderID order.OrderID) (*billing.Invoice, error) {
	return v.oneInvoice(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_id = ?`, string(orderID))
}

func (v *billingView) oneInvoice(ctx context.Context, query string, args ...any) (*billing.Invoice, error) {
	inv, err := scanInvoice(v.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrInvoiceNotFound
	}
	return inv, err
}

func (v *billingView) InvoicesByBuyer(ctx context.Context, buyerID string) ([]*billing.Invoice, error) {
	return v.queryInvoices(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE buyer_id = ? ORDER BY number`, buyerID)
}

func (v *billingView) Invoices(ctx context.Context) ([]*billing.Invoice, error) {
	return v.queryInvoices(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY number`)
}

func (v *billingView) queryInvoices(ctx context.Context, query string, args ...any) ([]*billing.Invoice, error) {
	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row rowScanner) (*billing.Invoice, error) {
	var inv billing.Invoice
	var id, orderID, amount, paidAmount, dueDate, createdAt string
	var paidAt sql.NullString
	err := row.Scan(&id, &inv.Number, &orderID, &inv.BuyerID, &amount, &paidAmount, &dueDate, &paidAt, &createdAt)
	if err != nil {
		return nil, err
	}
	inv.ID = billing.InvoiceID(id)
	inv.OrderID = order.OrderID(orderID)
	if inv.Amount, err = decodeDecimal(amount); err != nil {
		return nil, err
	}
	if inv.PaidAmount, err = decodeDecimal(paidAmount); err != nil {
		return nil, err
	}
	if inv.DueDate, err = decodeTime(dueDate); err != nil {
		return nil, err
	}
	if inv.PaidAt, err = decodeTimePtr(paidAt); err != nil {
		return nil, err
	}
	if inv.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (v *billingView) AppendPayment(ctx context.Context, p *billing.Payment) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount, paid_on, method, created_by, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.InvoiceID), p.Amount.String(), encodeTime(p.Date),
		string(p.Method), p.CreatedBy, p.Notes, encodeTime(p.CreatedAt))
	return err
}

func (v *billingView) PaymentsByInvoice(ctx context.Context, id billing.InvoiceID) ([]*billing.Payment, error) {
	rows, err := v.db.QueryContext(ctx, `
		SELECT id, invoice_id, amount, paid_on, method, created_by, notes, created_at
		FROM payments WHERE invoice_id = ? ORDER BY created_at, id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.Payment
	for rows.Next() {
		var p billing.Payment
		var pid, invID, amount, paidOn, method, createdAt string
		if err := rows.Scan(&pid, &invID, &amount, &paidOn, &method, &p.CreatedBy, &p.Notes, &createdAt); err != nil {
			return nil, err
		}
		p.ID = billing.PaymentID(pid)
		p.InvoiceID = billing.InvoiceID(invID)
		p.Method = billing.Method(method)
		if p.Amount, err = decodeDecimal(amount); err != nil {
			return nil, err
		}
		if p.Date, err = decodeTime(paidOn); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// =============================================================================
// WAREHOUSE VIEW
// =============================================================================

// Warehouse returns the warehouse-domain view.
func (s *Store) Warehouse() warehouse.Store {
	return &warehouseView{db: s.db}
}

type warehouseView struct {
	db querier
}

func (v *warehouseView) Append(ctx context.Context, e *warehouse.Entry) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO warehouse_entries (id, location, entry_type, entry_date, product, category, sub_type,
			quantity, unit, head_count, weight, supplier_ref, destination, batch_id, reversal_of, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Location, string(e.Type), encodeTime(e.Date), e.Product, e.Category, e.SubType,
		e.Quantity.String(), e.Unit, e.HeadCount, e.Weight.String(),
		e.SupplierRef, e.Destination, e.BatchID, e.ReversalOf, e.CreatedBy, encodeTime(e.CreatedAt))
	return err
}

const entryColumns = `id, location, entry_type, entry_date, product, category, sub_type,
	quantity, unit, head_count, weight, supplier_ref, destination, batch_id, reversal_of, created_by, created_at`

func (v *warehouseView) GetEntry(ctx context.Context, id string) (*warehouse.Entry, error) {
	e, err := scanEntry(v.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM warehouse_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, warehouse.ErrEntryNotFound
	}
	return e, err
}

func (v *warehouseView) Entries(ctx context.Context) ([]*warehouse.Entry, error) {
	return v.queryEntries(ctx, `SELECT `+entryColumns+` FROM warehouse_entries ORDER BY entry_date, created_at`)
}

func (v *warehouseView) EntriesByLocation(ctx context.Context, location string) ([]*warehouse.Entry, error) {
	return v.queryEntries(ctx, `SELECT `+entryColumns+` FROM warehouse_entries WHERE location = ? ORDER BY entry_date, created_at`, location)
}

func (v *warehouseView) queryEntries(ctx context.Context, query string, args ...any) ([]*warehouse.Entry, error) {
	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*warehouse.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row rowScanner) (*warehouse.Entry, error) {
	var e warehouse.Entry
	var entryType, entryDate, quantity, weight, createdAt string
	err := row.Scan(&e.ID, &e.Location, &entryType, &entryDate, &e.Product, &e.Category, &e.SubType,
		&quantity, &e.Unit, &e.HeadCount, &weight, &e.SupplierRef, &e.Destination,
		&e.BatchID, &e.ReversalOf, &e.CreatedBy, &createdAt)
	if err != nil {
		return nil, err
	}
	e.Type = warehouse.EntryType(entryType)
	if e.Date, err = decodeTime(entryDate); err != nil {
		return nil, err
	}
	if e.Quantity, err = decodeDecimal(quantity); err != nil {
		return nil, err
	}
	if e.Weight, err = decodeDecimal(weight); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}
