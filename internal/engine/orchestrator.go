// Package engine coordinates one outreach cycle end to end: lock, fetch,
// route, dispatch, record. It owns no policy of its own; policy lives in the
// cadence package and the dispatcher, and the engine wires their verdicts to
// the persistence ports.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nearmiss1193-afk/outreach/internal/cadence"
	"github.com/nearmiss1193-afk/outreach/internal/dispatch"
	"github.com/nearmiss1193-afk/outreach/internal/domain"
	"github.com/nearmiss1193-afk/outreach/internal/metrics"
	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

// TouchDispatcher is the slice of the dispatcher the engine needs.
type TouchDispatcher interface {
	Dispatch(ctx context.Context, lead domain.Lead, channel domain.Channel, variant domain.MessageVariant, correlationID string) (dispatch.Outcome, error)
}

// Config bounds one tick.
type Config struct {
	BatchSize   int
	LockKey     string
	LockTTL     time.Duration
	TickTimeout time.Duration
	HolderID    string
}

func DefaultConfig() Config {
	return Config{
		BatchSize:   50,
		LockKey:     "outreach_cycle",
		LockTTL:     10 * time.Minute,
		TickTimeout: 5 * time.Minute,
		HolderID:    uuid.NewString(),
	}
}

// Summary is the per-tick accounting the engine reports and publishes.
type Summary struct {
	Processed     int           `json:"processed"`
	Sent          int           `json:"sent"`
	Skipped       int           `json:"skipped"`
	Completed     int           `json:"completed"`
	NoContactInfo int           `json:"no_contact_info"`
	Failed        int           `json:"failed"`
	Paused        bool          `json:"paused"`
	LockSkipped   bool          `json:"lock_skipped"`
	Duration      time.Duration `json:"duration_ns"`
}

// Orchestrator runs the cadence engine over one batch of leads per Tick call.
type Orchestrator struct {
	leads      ports.LeadRepository
	ledger     ports.TouchLedger
	locks      ports.LockStore
	state      ports.StateStore
	quota      ports.QuotaStore
	publisher  ports.Publisher
	dispatcher TouchDispatcher

	router   cadence.Router
	schedule cadence.Schedule
	variants map[domain.Channel][]domain.MessageVariant

	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

// Deps collects the orchestrator's collaborators. Quota, publisher and
// metrics may be nil; the engine degrades to unlimited quota, no events and
// no instrumentation.
type Deps struct {
	Leads      ports.LeadRepository
	Ledger     ports.TouchLedger
	Locks      ports.LockStore
	State      ports.StateStore
	Quota      ports.QuotaStore
	Publisher  ports.Publisher
	Dispatcher TouchDispatcher
	Router     cadence.Router
	Schedule   cadence.Schedule
	Variants   map[domain.Channel][]domain.MessageVariant
	Metrics    *metrics.Registry
	Logger     *slog.Logger
}

func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultConfig().LockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultConfig().LockTTL
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = DefaultConfig().TickTimeout
	}
	if cfg.HolderID == "" {
		cfg.HolderID = uuid.NewString()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		leads:      deps.Leads,
		ledger:     deps.Ledger,
		locks:      deps.Locks,
		state:      deps.State,
		quota:      deps.Quota,
		publisher:  deps.Publisher,
		dispatcher: deps.Dispatcher,
		router:     deps.Router,
		schedule:   deps.Schedule,
		variants:   deps.Variants,
		cfg:        cfg,
		logger:     logger,
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

type leadResult struct {
	kind   string
	reason string
}

const (
	resultSent          = "sent"
	resultSkipped       = "skipped"
	resultCompleted     = "completed"
	resultNoContactInfo = "no_contact_info"
	resultFailed        = "failed"
)

// Tick runs one full cycle. A held lock or a paused campaign is a clean
// no-op, not an error. The only error that aborts a cycle mid-batch is a
// ledger that stopped persisting: the engine will not advance lead state it
// cannot record.
func (o *Orchestrator) Tick(ctx context.Context) (Summary, error) {
	start := o.now()
	summary := Summary{}

	mode, err := o.state.CampaignMode(ctx)
	if err != nil {
		o.metrics.ObserveTick("failed", o.now().Sub(start))
		return summary, fmt.Errorf("read campaign mode: %w", err)
	}
	if mode == domain.ModePaused {
		summary.Paused = true
		summary.Duration = o.now().Sub(start)
		o.logger.Info("campaign paused, tick skipped")
		o.metrics.ObserveTick("paused", summary.Duration)
		return summary, nil
	}

	lock, err := o.locks.Acquire(ctx, o.cfg.LockKey, o.cfg.HolderID, o.cfg.LockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		summary.LockSkipped = true
		summary.Duration = o.now().Sub(start)
		o.logger.Debug("cycle lock held elsewhere, tick skipped", "lock_key", o.cfg.LockKey)
		o.metrics.ObserveTick("lock_skipped", summary.Duration)
		return summary, nil
	}
	if err != nil {
		o.metrics.ObserveTick("failed", o.now().Sub(start))
		return summary, fmt.Errorf("acquire cycle lock: %w", err)
	}
	defer func() {
		// The release must outlive the tick deadline or an expired tick
		// strands the lock until its TTL.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.locks.Release(releaseCtx, lock.Key, lock.HolderID); err != nil {
			o.logger.Warn("cycle lock release failed", "lock_key", lock.Key, "error", err)
		}
	}()

	tickCtx, cancel := context.WithTimeout(ctx, o.cfg.TickTimeout)
	defer cancel()

	leads, err := o.leads.FetchContactable(tickCtx, o.cfg.BatchSize)
	if err != nil {
		o.metrics.ObserveTick("failed", o.now().Sub(start))
		return summary, fmt.Errorf("fetch contactable leads: %w", err)
	}
	o.logger.Info("tick started", "batch", len(leads), "holder_id", o.cfg.HolderID)

	for _, lead := range leads {
		if tickCtx.Err() != nil {
			o.logger.Warn("tick deadline reached, remaining leads deferred",
				"processed", summary.Processed, "batch", len(leads))
			break
		}
		result, err := o.processLead(tickCtx, lead)
		if err != nil {
			if errors.Is(err, domain.ErrLedgerUnavailable) {
				summary.Duration = o.now().Sub(start)
				o.metrics.ObserveTick("failed", summary.Duration)
				return summary, fmt.Errorf("lead %s: %w", lead.ID, err)
			}
			// One lead's failure never takes down the batch.
			summary.Processed++
			summary.Failed++
			o.metrics.ObserveLead(resultFailed)
			o.logger.Error("lead processing failed", "lead_id", lead.ID, "error", err)
			continue
		}
		summary.Processed++
		switch result.kind {
		case resultSent:
			summary.Sent++
			o.metrics.ObserveLead(resultSent)
		case resultCompleted:
			summary.Completed++
			o.metrics.ObserveLead("sequence_complete")
		case resultNoContactInfo:
			summary.NoContactInfo++
			o.metrics.ObserveLead("no_contact_info")
		case resultFailed:
			summary.Failed++
			o.metrics.ObserveLead(resultFailed)
		default:
			summary.Skipped++
			o.metrics.ObserveLead(result.reason)
		}
	}

	summary.Duration = o.now().Sub(start)
	if err := o.state.RecordHeartbeat(ctx, "outreach_tick", o.now()); err != nil {
		o.logger.Warn("heartbeat write failed", "error", err)
	}
	o.publishTickCompleted(ctx, summary)
	o.metrics.ObserveTick("completed", summary.Duration)
	o.logger.Info("tick completed",
		"processed", summary.Processed,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)
	return summary, nil
}

func (o *Orchestrator) processLead(ctx context.Context, lead domain.Lead) (leadResult, error) {
	now := o.now()

	history, err := o.ledger.History(ctx, lead.ID)
	if err != nil {
		return leadResult{}, fmt.Errorf("load touch history: %w", err)
	}
	// Touches from earlier cycles belong to a finished sequence; a recycled
	// lead starts the ladder over.
	history = cycleTouches(history, lead.SequenceCycle)

	phoneQuotaOK := true
	if lead.HasPhone() && o.quota != nil {
		ok, err := o.quota.Available(ctx, o.router.PhoneChannel())
		if err != nil {
			// Quota store down: route to email rather than risk overspend.
			o.logger.Warn("quota check failed, phone routing disabled", "lead_id", lead.ID, "error", err)
			ok = false
		}
		phoneQuotaOK = ok
	}

	channel, decision := o.router.Route(lead, now, history, phoneQuotaOK)
	switch decision {
	case cadence.DecisionNoContactInfo:
		if err := o.transition(ctx, lead, domain.StatusNoContactInfo); err != nil {
			return leadResult{}, err
		}
		o.logger.Info("lead has no contact info", "lead_id", lead.ID)
		return leadResult{kind: resultNoContactInfo}, nil
	case cadence.DecisionSkip:
		return leadResult{kind: resultSkipped, reason: o.skipReason(lead, channel, now)}, nil
	}

	count, lastAt, touched := cadence.SequenceStats(history)
	var age time.Duration
	if touched {
		age = now.Sub(lastAt)
	}
	action := o.schedule.NextStep(count, age)
	switch action.Kind {
	case cadence.ActionWait:
		return leadResult{kind: resultSkipped, reason: "cooldown"}, nil
	case cadence.ActionComplete:
		if err := o.transition(ctx, lead, domain.StatusSequenceComplete); err != nil {
			return leadResult{}, err
		}
		o.logger.Info("sequence complete", "lead_id", lead.ID, "channel", channel, "touches", count)
		return leadResult{kind: resultCompleted}, nil
	}

	variants := o.variants[channel]
	if len(variants) == 0 {
		return leadResult{}, fmt.Errorf("no message variants configured for channel %q", channel)
	}
	variantID := cadence.Assigner{Variants: len(variants)}.Assign(lead.ID, action.Step)
	variant := variants[variantID]
	variant.ID = variantID

	correlationID := domain.CorrelationID(lead.ID, lead.SequenceCycle, channel, action.Step)
	dispatchStart := o.now()
	outcome, err := o.dispatcher.Dispatch(ctx, lead, channel, variant, correlationID)
	dispatchTook := o.now().Sub(dispatchStart)

	switch {
	case errors.Is(err, domain.ErrDuplicateTouch):
		// Another invocation already owns this step.
		o.logger.Info("touch already recorded", "lead_id", lead.ID, "correlation_id", correlationID)
		return leadResult{kind: resultSkipped, reason: "duplicate"}, nil
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return leadResult{}, err
	case errors.Is(err, domain.ErrPermanentSend):
		o.metrics.ObserveTouch(channel, domain.TouchFailed, dispatchTook)
		return o.recordPermanentFailure(ctx, lead, channel, action.Step, variantID, correlationID, outcome, now)
	case err != nil:
		// Transient failure after retries: nothing recorded, the next tick
		// retries the same correlation ID.
		return leadResult{}, fmt.Errorf("dispatch %s: %w", channel, err)
	}

	o.metrics.ObserveTouch(channel, domain.TouchSent, dispatchTook)
	return o.recordSentTouch(ctx, lead, channel, action.Step, variantID, correlationID, variant, outcome, now)
}

func (o *Orchestrator) recordSentTouch(ctx context.Context, lead domain.Lead, channel domain.Channel, step, variantID int, correlationID string, variant domain.MessageVariant, outcome dispatch.Outcome, now time.Time) (leadResult, error) {
	payload, _ := json.Marshal(map[string]string{
		"subject": dispatch.RenderTemplate(variant.Subject, lead),
		"body":    dispatch.RenderTemplate(variant.Body, lead),
	})
	touch := domain.Touch{
		ID:            uuid.New(),
		LeadID:        lead.ID,
		Channel:       channel,
		Cycle:         lead.SequenceCycle,
		Step:          step,
		VariantID:     variantID,
		Status:        domain.TouchSent,
		CorrelationID: correlationID,
		ExternalRef:   outcome.ExternalRef,
		Payload:       payload,
		SentAt:        now,
	}
	if err := o.ledger.RecordTouch(ctx, touch); err != nil {
		if errors.Is(err, domain.ErrDuplicateTouch) {
			return leadResult{kind: resultSkipped, reason: "duplicate"}, nil
		}
		// The send went out but could not be recorded. Abort the cycle so
		// the gap is one touch, not a batch.
		return leadResult{}, fmt.Errorf("%w: record touch %s: %v", domain.ErrLedgerUnavailable, correlationID, err)
	}
	if err := o.leads.RecordLeadTouched(ctx, lead.ID, now); err != nil {
		o.logger.Warn("lead touch bookkeeping failed", "lead_id", lead.ID, "error", err)
	}
	if lead.Status != domain.StatusOutreachSent {
		if err := o.transition(ctx, lead, domain.StatusOutreachSent); err != nil {
			return leadResult{}, err
		}
	}
	if o.quota != nil && channel == o.router.PhoneChannel() {
		if err := o.quota.Consume(ctx, channel); err != nil {
			o.logger.Warn("quota consume failed", "channel", channel, "error", err)
		}
	}
	o.publishTouchRecorded(ctx, touch)
	o.logger.Info("touch sent",
		"lead_id", lead.ID,
		"channel", channel,
		"step", step,
		"variant_id", variantID,
		"correlation_id", correlationID,
		"external_ref", outcome.ExternalRef,
		"attempts", outcome.Attempts,
	)
	return leadResult{kind: resultSent}, nil
}

func (o *Orchestrator) recordPermanentFailure(ctx context.Context, lead domain.Lead, channel domain.Channel, step, variantID int, correlationID string, outcome dispatch.Outcome, now time.Time) (leadResult, error) {
	payload, _ := json.Marshal(map[string]string{"fail_reason": outcome.FailReason})
	touch := domain.Touch{
		ID:            uuid.New(),
		LeadID:        lead.ID,
		Channel:       channel,
		Cycle:         lead.SequenceCycle,
		Step:          step,
		VariantID:     variantID,
		Status:        domain.TouchFailed,
		CorrelationID: correlationID,
		Payload:       payload,
		SentAt:        now,
	}
	if err := o.ledger.RecordTouch(ctx, touch); err != nil && !errors.Is(err, domain.ErrDuplicateTouch) {
		return leadResult{}, fmt.Errorf("%w: record failed touch %s: %v", domain.ErrLedgerUnavailable, correlationID, err)
	}
	if err := o.transition(ctx, lead, domain.StatusFailed); err != nil {
		return leadResult{}, err
	}
	o.logger.Warn("touch permanently failed",
		"lead_id", lead.ID,
		"channel", channel,
		"step", step,
		"reason", outcome.FailReason,
	)
	return leadResult{kind: resultFailed}, nil
}

// transition applies a compare-and-swap status move. Losing the race means
// someone else advanced the lead first; that is success, not failure.
func (o *Orchestrator) transition(ctx context.Context, lead domain.Lead, to domain.Status) error {
	err := o.leads.UpdateStatus(ctx, lead.ID, lead.Status, to)
	if errors.Is(err, domain.ErrStaleStatus) {
		o.logger.Debug("status transition lost race", "lead_id", lead.ID, "from", lead.Status, "to", to)
		return nil
	}
	if err != nil {
		return fmt.Errorf("update lead status to %s: %w", to, err)
	}
	return nil
}

func (o *Orchestrator) skipReason(lead domain.Lead, channel domain.Channel, now time.Time) string {
	if channel != "" {
		return "spacing"
	}
	if !o.router.InBusinessHours(now) && !lead.HasEmail() {
		return "off_hours"
	}
	return "quota"
}

func cycleTouches(history []domain.Touch, cycle int) []domain.Touch {
	out := make([]domain.Touch, 0, len(history))
	for _, touch := range history {
		if touch.Cycle == cycle {
			out = append(out, touch)
		}
	}
	return out
}

func (o *Orchestrator) publishTouchRecorded(ctx context.Context, touch domain.Touch) {
	if o.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"touch_id":       touch.ID,
		"lead_id":        touch.LeadID,
		"channel":        touch.Channel,
		"cycle":          touch.Cycle,
		"step":           touch.Step,
		"variant_id":     touch.VariantID,
		"correlation_id": touch.CorrelationID,
		"external_ref":   touch.ExternalRef,
		"sent_at":        touch.SentAt,
	})
	if err != nil {
		return
	}
	if err := o.publisher.Publish(ctx, ports.EventTouchRecorded, payload, touch.LeadID.String()); err != nil {
		o.logger.Warn("touch event publish failed", "correlation_id", touch.CorrelationID, "error", err)
	}
}

func (o *Orchestrator) publishTickCompleted(ctx context.Context, summary Summary) {
	if o.publisher == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := o.publisher.Publish(ctx, ports.EventTickCompleted, payload, o.cfg.LockKey); err != nil {
		o.logger.Warn("tick event publish failed", "error", err)
	}
}
