// Package clock provides an injectable time source.
//
// Invoice aging (OVERDUE reclassification) is purely time-dependent: an
// invoice can flip from UNPAID to OVERDUE with no write at all. Every
// engine that derives state from "now" takes a Clock instead of calling
// time.Now directly, so tests can move the clock deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source for all derived, time-dependent state.
type Clock interface {
	Now() time.Time
}

// =============================================================================
// SYSTEM CLOCK - Production time source
// =============================================================================

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// =============================================================================
// FIXED CLOCK - Deterministic time source for tests
// =============================================================================

// Fixed is a settable clock. Safe for concurrent use.
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t.UTC()}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Set moves the clock to an absolute time.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = t.UTC()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

// AdvanceDays moves the clock forward by whole days.
func (f *Fixed) AdvanceDays(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.AddDate(0, 0, n)
}
