package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

// Heartbeat proves the scheduler host is alive independently of whether any
// tick found work. An external monitor alerts on a stale row.
type Heartbeat struct {
	state  ports.StateStore
	job    string
	logger *slog.Logger
	now    func() time.Time
}

func NewHeartbeat(state ports.StateStore, job string, logger *slog.Logger) *Heartbeat {
	if job == "" {
		job = "outreach_heartbeat"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{state: state, job: job, logger: logger, now: time.Now}
}

// Beat writes one liveness timestamp.
func (h *Heartbeat) Beat(ctx context.Context) error {
	at := h.now()
	if err := h.state.RecordHeartbeat(ctx, h.job, at); err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	h.logger.Info("heartbeat recorded", "job", h.job, "at", at)
	return nil
}
