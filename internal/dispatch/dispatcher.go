package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

// RetryConfig bounds the dispatcher's backoff loop. Worst case per lead is
// MaxAttempts sends plus the summed backoff, roughly a minute at defaults.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	SendTimeout time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		SendTimeout: 30 * time.Second,
	}
}

// Outcome is the definitive result of one dispatch.
type Outcome struct {
	ExternalRef string
	Status      domain.TouchStatus
	Attempts    int
	FailReason  string
}

// Dispatcher fans a send out to the channel's sender with retry/backoff and
// failure classification. The ledger is consulted before any external call so
// a correlation ID that was already recorded never reaches a collaborator
// twice from this process.
type Dispatcher struct {
	senders map[domain.Channel]ports.Sender
	ledger  ports.TouchLedger
	cfg     RetryConfig
	logger  *slog.Logger
	sleep   func(ctx context.Context, delay time.Duration) bool
}

func NewDispatcher(senders []ports.Sender, ledger ports.TouchLedger, cfg RetryConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	byChannel := make(map[domain.Channel]ports.Sender, len(senders))
	for _, sender := range senders {
		if sender != nil {
			byChannel[sender.Channel()] = sender
		}
	}
	return &Dispatcher{
		senders: byChannel,
		ledger:  ledger,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepWithContext,
	}
}

// Dispatch performs at most one logical send for the correlation ID.
//
// It returns domain.ErrDuplicateTouch without calling out when the ledger
// already holds the correlation ID, domain.ErrPermanentSend (with a failed
// Outcome) when the recipient is unreachable, and domain.ErrTransientSend
// when retries were exhausted without a definitive answer; in that last case
// nothing is recorded and the next tick picks the lead up again.
func (d *Dispatcher) Dispatch(ctx context.Context, lead domain.Lead, channel domain.Channel, variant domain.MessageVariant, correlationID string) (Outcome, error) {
	sender, ok := d.senders[channel]
	if !ok {
		return Outcome{}, fmt.Errorf("no sender configured for channel %q", channel)
	}

	exists, err := d.ledger.HasCorrelation(ctx, correlationID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: correlation pre-check: %v", domain.ErrLedgerUnavailable, err)
	}
	if exists {
		d.logger.Debug("dispatch dedup hit", "correlation_id", correlationID, "channel", channel)
		return Outcome{}, domain.ErrDuplicateTouch
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		sendCtx := ctx
		var cancel context.CancelFunc
		if d.cfg.SendTimeout > 0 {
			sendCtx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		}
		ref, err := sender.Send(sendCtx, lead, variant, correlationID)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return Outcome{ExternalRef: ref, Status: domain.TouchSent, Attempts: attempt}, nil
		}
		if IsPermanent(err) {
			d.logger.Warn("dispatch permanent failure",
				"correlation_id", correlationID,
				"channel", channel,
				"attempt", attempt,
				"error", err,
			)
			return Outcome{Status: domain.TouchFailed, Attempts: attempt, FailReason: err.Error()}, fmt.Errorf("%w: %v", domain.ErrPermanentSend, err)
		}
		lastErr = err
		d.logger.Warn("dispatch transient failure",
			"correlation_id", correlationID,
			"channel", channel,
			"attempt", attempt,
			"error", err,
		)
		if attempt == d.cfg.MaxAttempts {
			break
		}
		if !d.sleep(ctx, d.backoff(attempt)) {
			lastErr = ctx.Err()
			break
		}
	}
	if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
		return Outcome{}, fmt.Errorf("%w: %v", domain.ErrTransientSend, lastErr)
	}
	return Outcome{}, fmt.Errorf("%w: retries exhausted: %v", domain.ErrTransientSend, lastErr)
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.MaxDelay {
			return d.cfg.MaxDelay
		}
	}
	if d.cfg.MaxDelay > 0 && delay > d.cfg.MaxDelay {
		delay = d.cfg.MaxDelay
	}
	return delay
}

func sleepWithContext(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
