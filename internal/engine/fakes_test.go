package engine

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nearmiss1193-afk/outreach/internal/dispatch"
	"github.com/nearmiss1193-afk/outreach/internal/domain"
	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

type fakeLeads struct {
	mu       sync.Mutex
	leads    map[uuid.UUID]*domain.Lead
	fetchErr error
}

func newFakeLeads(leads ...domain.Lead) *fakeLeads {
	store := &fakeLeads{leads: make(map[uuid.UUID]*domain.Lead)}
	for _, lead := range leads {
		copied := lead
		store.leads[lead.ID] = &copied
	}
	return store
}

func (f *fakeLeads) FetchContactable(_ context.Context, limit int) ([]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []domain.Lead
	for _, lead := range f.leads {
		if slices.Contains(domain.ContactableStatuses, lead.Status) {
			out = append(out, *lead)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLeads) FindByID(_ context.Context, leadID uuid.UUID) (domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return domain.Lead{}, domain.ErrLeadNotFound
	}
	return *lead, nil
}

func (f *fakeLeads) UpdateStatus(_ context.Context, leadID uuid.UUID, from, to domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return domain.ErrLeadNotFound
	}
	if lead.Status != from {
		return domain.ErrStaleStatus
	}
	lead.Status = to
	return nil
}

func (f *fakeLeads) RecordLeadTouched(_ context.Context, leadID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return domain.ErrLeadNotFound
	}
	lead.LastTouchAt = &at
	lead.TotalTouches++
	return nil
}

func (f *fakeLeads) RecycleStale(_ context.Context, statuses []domain.Status, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved int64
	for _, lead := range f.leads {
		if !slices.Contains(statuses, lead.Status) {
			continue
		}
		if lead.LastTouchAt == nil || lead.LastTouchAt.After(cutoff) {
			continue
		}
		lead.Status = domain.StatusNew
		lead.SequenceCycle++
		moved++
	}
	return moved, nil
}

func (f *fakeLeads) status(leadID uuid.UUID) domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leads[leadID].Status
}

type fakeLedger struct {
	mu          sync.Mutex
	touches     []domain.Touch
	recordErr   error
	historyErr  error
	correlation map[string]bool
}

func newFakeLedger(touches ...domain.Touch) *fakeLedger {
	ledger := &fakeLedger{correlation: make(map[string]bool)}
	for _, touch := range touches {
		ledger.touches = append(ledger.touches, touch)
		ledger.correlation[touch.CorrelationID] = true
	}
	return ledger
}

func (f *fakeLedger) RecordTouch(_ context.Context, touch domain.Touch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	if f.correlation[touch.CorrelationID] {
		return domain.ErrDuplicateTouch
	}
	f.touches = append(f.touches, touch)
	f.correlation[touch.CorrelationID] = true
	return nil
}

func (f *fakeLedger) CountTouches(_ context.Context, leadID uuid.UUID, channel domain.Channel) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, touch := range f.touches {
		if touch.LeadID == leadID && touch.Channel == channel && touch.Status != domain.TouchFailed {
			count++
		}
	}
	return count, nil
}

func (f *fakeLedger) LastTouch(_ context.Context, leadID uuid.UUID, channel domain.Channel) (domain.Touch, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found domain.Touch
	var ok bool
	for _, touch := range f.touches {
		if touch.LeadID != leadID || touch.Channel != channel || touch.Status == domain.TouchFailed {
			continue
		}
		if !ok || touch.SentAt.After(found.SentAt) {
			found = touch
			ok = true
		}
	}
	return found, ok, nil
}

func (f *fakeLedger) History(_ context.Context, leadID uuid.UUID) ([]domain.Touch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	var out []domain.Touch
	for _, touch := range f.touches {
		if touch.LeadID == leadID {
			out = append(out, touch)
		}
	}
	return out, nil
}

func (f *fakeLedger) HasCorrelation(_ context.Context, correlationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.correlation[correlationID], nil
}

func (f *fakeLedger) UpdateTouchStatus(_ context.Context, ref ports.TouchRef, status domain.TouchStatus) (domain.Touch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.touches {
		touch := &f.touches[i]
		if (ref.ExternalRef != "" && touch.ExternalRef == ref.ExternalRef) ||
			(ref.ExternalRef == "" && touch.CorrelationID == ref.CorrelationID) {
			touch.Status = status
			return *touch, nil
		}
	}
	return domain.Touch{}, domain.ErrTouchNotFound
}

func (f *fakeLedger) all() []domain.Touch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Touch(nil), f.touches...)
}

type fakeLocks struct {
	mu    sync.Mutex
	held  map[string]domain.Lock
	clock func() time.Time
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]domain.Lock), clock: time.Now}
}

func (f *fakeLocks) Acquire(_ context.Context, key, holderID string, ttl time.Duration) (domain.Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock()
	if existing, ok := f.held[key]; ok && existing.ExpiresAt.After(now) && existing.HolderID != holderID {
		return domain.Lock{}, domain.ErrLockHeld
	}
	lock := domain.Lock{Key: key, HolderID: holderID, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	f.held[key] = lock
	return lock, nil
}

func (f *fakeLocks) Release(_ context.Context, key, holderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.held[key]; ok && existing.HolderID == holderID {
		delete(f.held, key)
	}
	return nil
}

type fakeState struct {
	mu         sync.Mutex
	mode       domain.Mode
	modeErr    error
	heartbeats map[string]time.Time
}

func newFakeState(mode domain.Mode) *fakeState {
	return &fakeState{mode: mode, heartbeats: make(map[string]time.Time)}
}

func (f *fakeState) CampaignMode(context.Context) (domain.Mode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.modeErr != nil {
		return "", f.modeErr
	}
	return f.mode, nil
}

func (f *fakeState) RecordHeartbeat(_ context.Context, job string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats[job] = at
	return nil
}

type fakeQuota struct {
	mu        sync.Mutex
	available map[domain.Channel]bool
	consumed  []domain.Channel
}

func newFakeQuota() *fakeQuota {
	return &fakeQuota{available: map[domain.Channel]bool{
		domain.ChannelEmail: true,
		domain.ChannelSMS:   true,
		domain.ChannelVoice: true,
	}}
}

func (f *fakeQuota) Available(_ context.Context, channel domain.Channel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available[channel], nil
}

func (f *fakeQuota) Consume(_ context.Context, channel domain.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumed = append(f.consumed, channel)
	return nil
}

type publishedEvent struct {
	eventType string
	key       string
	payload   []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(_ context.Context, eventType string, payload []byte, partitionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{eventType: eventType, key: partitionKey, payload: payload})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) byType(eventType string) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedEvent
	for _, event := range f.events {
		if event.eventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

type fakeDispatcher struct {
	mu    sync.Mutex
	fn    func(lead domain.Lead, channel domain.Channel) (dispatch.Outcome, error)
	calls []domain.Channel
}

func (f *fakeDispatcher) Dispatch(_ context.Context, lead domain.Lead, channel domain.Channel, _ domain.MessageVariant, _ string) (dispatch.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, channel)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(lead, channel)
	}
	return dispatch.Outcome{ExternalRef: "ext-1", Status: domain.TouchSent, Attempts: 1}, nil
}
