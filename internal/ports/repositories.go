package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

// LeadRepository is the single schema-owning access point for contacts_master.
type LeadRepository interface {
	// FetchContactable returns leads eligible for a touch, oldest-touched
	// first with never-touched leads leading, capped at limit.
	FetchContactable(ctx context.Context, limit int) ([]domain.Lead, error)
	FindByID(ctx context.Context, leadID uuid.UUID) (domain.Lead, error)
	// UpdateStatus is a compare-and-swap. It returns domain.ErrStaleStatus
	// when the lead's status no longer matches from.
	UpdateStatus(ctx context.Context, leadID uuid.UUID, from, to domain.Status) error
	// RecordLeadTouched bumps the cached last_touch_at and total_touches.
	RecordLeadTouched(ctx context.Context, leadID uuid.UUID, at time.Time) error
	// RecycleStale returns leads in the given statuses whose last touch is
	// older than cutoff back to StatusNew, reporting how many moved.
	RecycleStale(ctx context.Context, statuses []domain.Status, cutoff time.Time) (int64, error)
}

// TouchRef identifies a touch for status updates coming from delivery
// callbacks. ExternalRef wins when both are set.
type TouchRef struct {
	ExternalRef   string
	CorrelationID string
}

// TouchLedger is the append-only record of every send attempt.
type TouchLedger interface {
	// RecordTouch appends one touch. It returns domain.ErrDuplicateTouch
	// when the correlation ID already exists; this is the core dedup
	// guarantee.
	RecordTouch(ctx context.Context, touch domain.Touch) error
	CountTouches(ctx context.Context, leadID uuid.UUID, channel domain.Channel) (int, error)
	LastTouch(ctx context.Context, leadID uuid.UUID, channel domain.Channel) (domain.Touch, bool, error)
	History(ctx context.Context, leadID uuid.UUID) ([]domain.Touch, error)
	HasCorrelation(ctx context.Context, correlationID string) (bool, error)
	// UpdateTouchStatus applies an asynchronous delivery event and returns
	// the updated touch, or domain.ErrTouchNotFound.
	UpdateTouchStatus(ctx context.Context, ref TouchRef, status domain.TouchStatus) (domain.Touch, error)
}

// LockStore provides database-backed mutual exclusion between overlapping
// scheduler invocations. The row is the lock.
type LockStore interface {
	// Acquire takes the lock, reclaiming an expired row if present. It
	// returns domain.ErrLockHeld when a non-expired holder exists.
	Acquire(ctx context.Context, key, holderID string, ttl time.Duration) (domain.Lock, error)
	Release(ctx context.Context, key, holderID string) error
}

// StateStore reads process-wide toggles and records liveness.
type StateStore interface {
	CampaignMode(ctx context.Context) (domain.Mode, error)
	RecordHeartbeat(ctx context.Context, job string, at time.Time) error
}
