package ports

import (
	"context"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

// QuotaStore tracks per-channel daily send budgets. Availability is a cheap
// read; Consume happens only after a confirmed send, so the count may lag a
// send in flight. The quota is a throttle, not a hard limit.
type QuotaStore interface {
	Available(ctx context.Context, channel domain.Channel) (bool, error)
	Consume(ctx context.Context, channel domain.Channel) error
}
