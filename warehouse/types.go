/*
Package warehouse implements the append-only stock transaction ledger.

PURPOSE:
  Every physical movement - inbound deliveries, outbound shipments,
  raw-material consumption, finished-good production - is one immutable
  Entry. Stock on hand is never a stored field: it is always recomputed
  by replaying the ledger, so it can never drift. Batches correlate
  consumption entries with the production entries they were drawn for.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never updated or deleted. Corrections are
     compensating entries (see Reverse in engine.go).
  2. REPLAY: StockOf is a pure fold over the matching entries.
  3. BATCH SCOPE: a batch id only ever appears on CONSUMPTION and
     PRODUCTION entries.

  No negative-stock validation happens at write time. The ledger
  accepts any entry, mirroring physical counts that are reconciled
  after the fact.
*/
package warehouse

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY TYPES
// =============================================================================

type EntryType string

const (
	TypeInbound     EntryType = "INBOUND"
	TypeOutbound    EntryType = "OUTBOUND"
	TypeConsumption EntryType = "CONSUMPTION"
	TypeProduction  EntryType = "PRODUCTION"
)

// ValidType reports whether t is a known entry type.
func ValidType(t EntryType) bool {
	switch t {
	case TypeInbound, TypeOutbound, TypeConsumption, TypeProduction:
		return true
	}
	return false
}

// direction returns +1 for stock-increasing types, -1 for decreasing.
func direction(t EntryType) int {
	switch t {
	case TypeInbound, TypeProduction:
		return 1
	default:
		return -1
	}
}

// =============================================================================
// ENTRY - One immutable ledger row
// =============================================================================

type Entry struct {
	ID       string
	Location string
	Type     EntryType
	Date     time.Time

	// Payload. Which fields are set depends on the warehouse domain:
	// poultry uses head count + weight, dry goods and seasoning use a
	// named product with quantity + unit. Category and SubType tag the
	// product family (e.g. seasoning kind).
	Product  string
	Category string
	SubType  string
	Quantity decimal.Decimal
	Unit     string

	HeadCount int
	Weight    decimal.Decimal

	// Optional references.
	SupplierRef string
	Destination string

	// BatchID groups the entries of one production run. Only valid on
	// CONSUMPTION and PRODUCTION entries.
	BatchID string

	// ReversalOf links a compensating entry to the entry it undoes.
	ReversalOf string

	CreatedBy string
	CreatedAt time.Time
}

// Matches reports whether the entry belongs to (location, key).
func (e *Entry) Matches(location string, key ProductKey) bool {
	if e.Location != location {
		return false
	}
	if key.Name != e.Product && key.Name != e.Category {
		return false
	}
	if key.SubType != "" && key.SubType != e.SubType {
		return false
	}
	return true
}

// ProductKey selects a stock figure: Name matches either the product
// name or the category tag; a non-empty SubType narrows further.
type ProductKey struct {
	Name    string
	SubType string
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidEntry is returned when an entry fails write-time
	// validation (missing location, unknown type, negative quantity).
	ErrInvalidEntry = errors.New("invalid warehouse entry")

	// ErrBatchNotAllowed is returned when a batch id is attached to an
	// INBOUND or OUTBOUND entry.
	ErrBatchNotAllowed = errors.New("batch id only allowed on consumption and production entries")

	// ErrEntryNotFound is returned for missing entries.
	ErrEntryNotFound = errors.New("warehouse entry not found")

	// ErrAlreadyReversed is returned when reversing an entry that
	// already has a compensating entry.
	ErrAlreadyReversed = errors.New("entry already reversed")
)
