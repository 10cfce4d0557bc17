/*
errors.go - Centralized error types for the order lifecycle engine

PURPOSE:
  All order errors in one place for consistency and discoverability.
  Callers branch with errors.Is against the sentinels; the structured
  types carry enough context to build a useful message.

ERROR CATEGORIES:
  1. Transition errors - invalid or duplicate state changes
  2. Adjustment errors - line revision validation failures
  3. Lookup errors - missing aggregates

All validation failures here are local and synchronous: retrying without
changing the input will fail again. Store-level failures (lock timeouts,
I/O) pass through untouched and are the caller's retry concern.

SEE ALSO:
  - machine.go: Produces transition errors
  - engine.go: Produces adjustment errors
*/
package order

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when the requested status change is
	// not the next adjacent state, or the order is terminal.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyIssued is returned when advancing into the issuance state
	// on an order that already has an invoice. A well-behaved retrying
	// caller may treat this as success.
	ErrAlreadyIssued = errors.New("order already issued")

	// ErrAdjustmentNotAllowed is returned when adjusting an order that has
	// left its initial pending state.
	ErrAdjustmentNotAllowed = errors.New("adjustment not allowed in current state")

	// ErrQuantityExceedsOriginal is returned when a revised quantity is
	// greater than the quantity ordered at creation. Adjustment is strictly
	// a reduction mechanism.
	ErrQuantityExceedsOriginal = errors.New("revised quantity exceeds original")

	// ErrEmptyAdjustment is returned when an adjustment would remove every
	// line. Cancel the order instead.
	ErrEmptyAdjustment = errors.New("adjustment would remove all lines")

	// ErrNoOpAdjustment is returned when the revised line set is identical
	// to the current one.
	ErrNoOpAdjustment = errors.New("adjustment changes nothing")

	// ErrUnknownLine is returned when a revision references a product that
	// is not (or no longer) on the order.
	ErrUnknownLine = errors.New("revision references unknown line")

	// ErrInvalidLineItem is returned on create when a line has a
	// non-positive quantity, a negative unit price, or duplicates a product.
	ErrInvalidLineItem = errors.New("invalid line item")

	// ErrOrderNotFound is returned when the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError reports a rejected status change.
type InvalidTransitionError struct {
	OrderID OrderID
	Kind    Kind
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for %s order %s: %s -> %s", e.Kind, e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// AlreadyIssuedError reports a duplicate advance into the issuance state.
type AlreadyIssuedError struct {
	OrderID OrderID
	Status  Status
}

func (e *AlreadyIssuedError) Error() string {
	return fmt.Sprintf("order %s already issued (status %s)", e.OrderID, e.Status)
}

func (e *AlreadyIssuedError) Unwrap() error { return ErrAlreadyIssued }

// AdjustmentNotAllowedError reports an adjustment outside the pending state.
type AdjustmentNotAllowedError struct {
	OrderID OrderID
	Status  Status
}

func (e *AdjustmentNotAllowedError) Error() string {
	return fmt.Sprintf("order %s cannot be adjusted in status %s", e.OrderID, e.Status)
}

func (e *AdjustmentNotAllowedError) Unwrap() error { return ErrAdjustmentNotAllowed }

// QuantityExceedsOriginalError reports a revision that tries to increase a line.
type QuantityExceedsOriginalError struct {
	ProductID string
	Ordered   int
	Revised   int
}

func (e *QuantityExceedsOriginalError) Error() string {
	return fmt.Sprintf("line %s: revised quantity %d exceeds ordered %d", e.ProductID, e.Revised, e.Ordered)
}

func (e *QuantityExceedsOriginalError) Unwrap() error { return ErrQuantityExceedsOriginal }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// and will not succeed on retry without correction.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAdjustmentNotAllowed) ||
		errors.Is(err, ErrQuantityExceedsOriginal) ||
		errors.Is(err, ErrEmptyAdjustment) ||
		errors.Is(err, ErrNoOpAdjustment) ||
		errors.Is(err, ErrUnknownLine) ||
		errors.Is(err, ErrInvalidLineItem)
}

// IsConflict returns true for idempotency violations that a retrying
// caller may treat as success.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyIssued)
}

// IsNotFound returns true if the error indicates a missing order.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}
