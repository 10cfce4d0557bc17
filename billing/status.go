/*
status.go - Derived invoice status and aging classification

PURPOSE:
  Status must behave as if recomputed on every read: OVERDUE is
  time-dependent and can flip from UNPAID without any write, purely by
  clock passage. Nothing in this package stores a status field; every
  read boundary calls StatusAt / AgingAt with the current time.

AGING BUCKETS:
  days past due = max(0, today - dueDate), on date granularity:
    current  not yet due
    1-7      one to seven days past due
    8-30     eight to thirty days past due
    30+      more than thirty days past due
*/
package billing

import "time"

// StatusAt derives the invoice status at a given time. Pure and
// idempotent: the same payment history and time always yield the same
// status.
func (inv *Invoice) StatusAt(now time.Time) Status {
	if inv.PaidAmount.GreaterThanOrEqual(inv.Amount) {
		return StatusPaid
	}
	if now.After(inv.DueDate) {
		return StatusOverdue
	}
	return StatusUnpaid
}

// =============================================================================
// AGING
// =============================================================================

type AgingBucket string

const (
	BucketCurrent AgingBucket = "current"
	Bucket1To7    AgingBucket = "1-7"
	Bucket8To30   AgingBucket = "8-30"
	BucketOver30  AgingBucket = "30+"
)

// DaysPastDue returns max(0, today - dueDate) in whole days. Both times
// are truncated to dates so partial days never shift a bucket.
func DaysPastDue(dueDate, now time.Time) int {
	due := atMidnight(dueDate)
	today := atMidnight(now)
	days := int(today.Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func atMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AgingAt classifies an unpaid invoice by how far past due it is.
// A PAID invoice always reports current: aging only measures exposure.
func (inv *Invoice) AgingAt(now time.Time) AgingBucket {
	if inv.StatusAt(now) == StatusPaid {
		return BucketCurrent
	}
	return bucketFor(DaysPastDue(inv.DueDate, now))
}

func bucketFor(daysPastDue int) AgingBucket {
	switch {
	case daysPastDue <= 0:
		return BucketCurrent
	case daysPastDue <= 7:
		return Bucket1To7
	case daysPastDue <= 30:
		return Bucket8To30
	default:
		return BucketOver30
	}
}
