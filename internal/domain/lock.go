package domain

import "time"

// Lock is a short-lived exclusivity marker backed by a job_locks row.
// At most one non-expired lock exists per key; a row past ExpiresAt is
// reclaimable by the next tick, which is the crash-recovery path.
type Lock struct {
	Key        string
	HolderID   string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}
