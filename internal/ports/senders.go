package ports

import (
	"context"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

// Sender performs one external send on a single channel.
//
// Implementations must be idempotent for a given correlation ID, either by
// passing it to the collaborator as an idempotency key or by relying on the
// caller's ledger pre-check.
type Sender interface {
	Channel() domain.Channel
	// Send returns the collaborator's delivery-tracking reference on
	// success. Failures are classified transient or permanent via the
	// domain send error sentinels.
	Send(ctx context.Context, lead domain.Lead, variant domain.MessageVariant, correlationID string) (string, error)
}
