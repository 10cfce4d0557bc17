/*
store.go - Persistence interface for the order aggregate

PURPOSE:
  Defines the contract between the lifecycle engine and the database.
  Implementations: store/memory (tests/dev) and store/sqlite (durable).

CONSISTENCY CONTRACT:
  Advance, Adjust and Cancel are read-modify-write cycles and must run
  inside WithTx so that concurrent calls against the same order
  serialize. The engine always re-reads the order inside the
  transaction; it never trusts a status it read outside one.
*/
package order

import (
	"context"
	"time"
)

// Store persists order aggregates. GetOrder returns ErrOrderNotFound
// for missing ids; reads return clones the caller may mutate freely.
type Store interface {
	// SaveOrder inserts or replaces the full aggregate (order + lines).
	SaveOrder(ctx context.Context, o *Order) error

	GetOrder(ctx context.Context, id OrderID) (*Order, error)

	// Read-model queries for the UI layer.
	OrdersByBuyer(ctx context.Context, buyerID string) ([]*Order, error)
	OrdersByStatus(ctx context.Context, kind Kind, status Status) ([]*Order, error)
	OrdersInRange(ctx context.Context, from, to time.Time) ([]*Order, error)

	// NextNumber increments and returns the named number series.
	// Series are per document prefix ("DO", "RO").
	NextNumber(ctx context.Context, series string) (int64, error)

	// WithTx executes fn atomically. If fn returns an error the
	// transaction is rolled back. Calls against the same order serialize.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// InvoiceIssuer is the billing-side collaborator invoked when an order
// enters its issuance state. IssueFor must be idempotent keyed by order
// id so a retried Advance is safe.
type InvoiceIssuer interface {
	IssueFor(ctx context.Context, o *Order) error
	Issued(ctx context.Context, id OrderID) (bool, error)
}
