package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

// RecyclerConfig bounds one recycle pass.
type RecyclerConfig struct {
	LockKey  string
	LockTTL  time.Duration
	Cooldown time.Duration
	HolderID string
}

func DefaultRecyclerConfig() RecyclerConfig {
	return RecyclerConfig{
		LockKey:  "recycle_cycle",
		LockTTL:  5 * time.Minute,
		Cooldown: 30 * 24 * time.Hour,
		HolderID: uuid.NewString(),
	}
}

// Recycler returns exhausted leads to the top of the funnel once their
// recycle cooldown has elapsed. It runs under its own lock so it can be
// scheduled independently of the tick job.
type Recycler struct {
	leads  ports.LeadRepository
	locks  ports.LockStore
	state  ports.StateStore
	cfg    RecyclerConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewRecycler(leads ports.LeadRepository, locks ports.LockStore, state ports.StateStore, cfg RecyclerConfig, logger *slog.Logger) *Recycler {
	defaults := DefaultRecyclerConfig()
	if cfg.LockKey == "" {
		cfg.LockKey = defaults.LockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaults.Cooldown
	}
	if cfg.HolderID == "" {
		cfg.HolderID = uuid.NewString()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recycler{
		leads:  leads,
		locks:  locks,
		state:  state,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run performs one recycle pass and returns how many leads moved back to
// StatusNew. A held lock returns zero without error.
func (r *Recycler) Run(ctx context.Context) (int64, error) {
	lock, err := r.locks.Acquire(ctx, r.cfg.LockKey, r.cfg.HolderID, r.cfg.LockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		r.logger.Debug("recycle lock held elsewhere, pass skipped", "lock_key", r.cfg.LockKey)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("acquire recycle lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := r.locks.Release(releaseCtx, lock.Key, lock.HolderID); err != nil {
			r.logger.Warn("recycle lock release failed", "lock_key", lock.Key, "error", err)
		}
	}()

	cutoff := r.now().Add(-r.cfg.Cooldown)
	moved, err := r.leads.RecycleStale(ctx, domain.RecyclableStatuses, cutoff)
	if err != nil {
		return 0, fmt.Errorf("recycle stale leads: %w", err)
	}
	if err := r.state.RecordHeartbeat(ctx, "outreach_recycle", r.now()); err != nil {
		r.logger.Warn("heartbeat write failed", "error", err)
	}
	r.logger.Info("recycle pass completed", "moved", moved, "cutoff", cutoff)
	return moved, nil
}
