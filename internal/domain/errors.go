package domain

import "errors"

var (
	// ErrStaleStatus reports a lost compare-and-swap race on a lead's status.
	// The caller retries on a later tick; it is never fatal.
	ErrStaleStatus = errors.New("lead status changed concurrently")
	// ErrDuplicateTouch reports a correlation-ID collision in the touch
	// ledger. A duplicate is the dedup guarantee working and is treated as
	// success by callers.
	ErrDuplicateTouch = errors.New("touch already recorded for correlation id")
	// ErrLockHeld reports that another invocation holds the cycle lock.
	// Expected under overlapping ticks; the tick is skipped, not failed.
	ErrLockHeld = errors.New("lock held by another holder")
	// ErrLedgerUnavailable marks ledger writes that could not be persisted.
	// The tick must abort rather than advance lead state it cannot record.
	ErrLedgerUnavailable = errors.New("touch ledger unavailable")
	// ErrTransientSend marks a send failure worth retrying with backoff.
	ErrTransientSend = errors.New("transient send failure")
	// ErrPermanentSend marks a send failure that retrying cannot fix.
	ErrPermanentSend = errors.New("permanent send failure")

	ErrLeadNotFound  = errors.New("lead not found")
	ErrTouchNotFound = errors.New("touch not found")
)
