// store.go - Persistence interface for the warehouse ledger.
//
// The contract is deliberately minimal: Append is the only write. There
// is no update and no delete, and no transactional wrapper is needed
// because every operation is a single append or a pure read.
package warehouse

import "context"

// Store persists warehouse ledger entries, ordered by entry date.
type Store interface {
	// Append adds one immutable entry. The ONLY write operation.
	Append(ctx context.Context, e *Entry) error

	GetEntry(ctx context.Context, id string) (*Entry, error)

	// Entries returns the full ledger, chronologically.
	Entries(ctx context.Context) ([]*Entry, error)

	// EntriesByLocation returns one location's slice of the ledger.
	EntriesByLocation(ctx context.Context, location string) ([]*Entry, error)
}
