package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

func seedLead(t *testing.T, repos Repositories, lead domain.Lead) domain.Lead {
	t.Helper()
	db := repos.Leads.(*leadRepository).db
	rec := leadModel{
		ID:            lead.ID,
		CRMID:         lead.CRMID,
		FirstName:     lead.FirstName,
		Email:         lead.Email,
		Phone:         lead.Phone,
		Company:       lead.Company,
		Status:        string(lead.Status),
		SequenceCycle: lead.SequenceCycle,
		LastTouchAt:   lead.LastTouchAt,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	lead.ID = rec.ID
	return lead
}

func testTouch(leadID uuid.UUID, step int, status domain.TouchStatus, sentAt time.Time) domain.Touch {
	return domain.Touch{
		ID:            uuid.New(),
		LeadID:        leadID,
		Channel:       domain.ChannelEmail,
		Step:          step,
		Status:        status,
		CorrelationID: domain.CorrelationID(leadID, 0, domain.ChannelEmail, step),
		ExternalRef:   "ext-" + uuid.NewString(),
		Payload:       json.RawMessage(`{"subject":"hi"}`),
		SentAt:        sentAt,
	}
}

func TestLeadRepositoryStatusCAS(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	lead := seedLead(t, repos, domain.Lead{Email: "a@b.test", Status: domain.StatusNew})

	if err := repos.Leads.UpdateStatus(ctx, lead.ID, domain.StatusNew, domain.StatusOutreachSent); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	err := repos.Leads.UpdateStatus(ctx, lead.ID, domain.StatusNew, domain.StatusResponded)
	if !errors.Is(err, domain.ErrStaleStatus) {
		t.Fatalf("err = %v, want ErrStaleStatus", err)
	}
	err = repos.Leads.UpdateStatus(ctx, uuid.New(), domain.StatusNew, domain.StatusResponded)
	if !errors.Is(err, domain.ErrLeadNotFound) {
		t.Fatalf("err = %v, want ErrLeadNotFound", err)
	}

	got, err := repos.Leads.FindByID(ctx, lead.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.StatusOutreachSent {
		t.Fatalf("status = %q, want outreach_sent", got.Status)
	}
}

func TestLeadRepositoryFetchContactableOrder(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	old := time.Now().UTC().Add(-72 * time.Hour)
	recent := time.Now().UTC().Add(-1 * time.Hour)
	neverTouched := seedLead(t, repos, domain.Lead{Email: "never@b.test", Status: domain.StatusNew})
	oldTouched := seedLead(t, repos, domain.Lead{Email: "old@b.test", Status: domain.StatusOutreachSent, LastTouchAt: &old})
	seedLead(t, repos, domain.Lead{Email: "recent@b.test", Status: domain.StatusOutreachSent, LastTouchAt: &recent})
	seedLead(t, repos, domain.Lead{Email: "done@b.test", Status: domain.StatusResponded})

	leads, err := repos.Leads.FetchContactable(ctx, 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("fetched %d leads, want 2", len(leads))
	}
	if leads[0].ID != neverTouched.ID {
		t.Fatalf("first lead = %s, want never-touched %s", leads[0].ID, neverTouched.ID)
	}
	if leads[1].ID != oldTouched.ID {
		t.Fatalf("second lead = %s, want oldest-touched %s", leads[1].ID, oldTouched.ID)
	}
}

func TestLeadRepositoryRecordTouchedAndRecycle(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	lead := seedLead(t, repos, domain.Lead{Email: "a@b.test", Status: domain.StatusSequenceComplete})
	at := time.Now().UTC().Add(-40 * 24 * time.Hour).Truncate(time.Second)
	if err := repos.Leads.RecordLeadTouched(ctx, lead.ID, at); err != nil {
		t.Fatalf("record touched: %v", err)
	}

	got, err := repos.Leads.FindByID(ctx, lead.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.TotalTouches != 1 || got.LastTouchAt == nil {
		t.Fatalf("unexpected lead %+v", got)
	}

	moved, err := repos.Leads.RecycleStale(ctx, domain.RecyclableStatuses, time.Now().UTC().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("recycle: %v", err)
	}
	if moved != 1 {
		t.Fatalf("moved = %d, want 1", moved)
	}
	got, err = repos.Leads.FindByID(ctx, lead.ID)
	if err != nil {
		t.Fatalf("find after recycle: %v", err)
	}
	if got.Status != domain.StatusNew {
		t.Fatalf("status = %q, want new", got.Status)
	}
	// The recycle bumps the cycle so the reused lead gets fresh
	// correlation IDs.
	if got.SequenceCycle != 1 {
		t.Fatalf("sequence cycle = %d, want 1", got.SequenceCycle)
	}
}

func TestTouchRepositoryDedup(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	lead := seedLead(t, repos, domain.Lead{Email: "a@b.test", Status: domain.StatusNew})
	touch := testTouch(lead.ID, 1, domain.TouchSent, time.Now().UTC())

	if err := repos.Touches.RecordTouch(ctx, touch); err != nil {
		t.Fatalf("record: %v", err)
	}
	dup := touch
	dup.ID = uuid.New()
	if err := repos.Touches.RecordTouch(ctx, dup); !errors.Is(err, domain.ErrDuplicateTouch) {
		t.Fatalf("err = %v, want ErrDuplicateTouch", err)
	}

	exists, err := repos.Touches.HasCorrelation(ctx, touch.CorrelationID)
	if err != nil {
		t.Fatalf("has correlation: %v", err)
	}
	if !exists {
		t.Fatal("correlation id not found after record")
	}
}

func TestTouchRepositoryCountsExcludeFailed(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	lead := seedLead(t, repos, domain.Lead{Email: "a@b.test", Status: domain.StatusNew})
	now := time.Now().UTC().Truncate(time.Second)
	if err := repos.Touches.RecordTouch(ctx, testTouch(lead.ID, 1, domain.TouchSent, now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("record sent: %v", err)
	}
	if err := repos.Touches.RecordTouch(ctx, testTouch(lead.ID, 2, domain.TouchFailed, now)); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	count, err := repos.Touches.CountTouches(ctx, lead.ID, domain.ChannelEmail)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	last, ok, err := repos.Touches.LastTouch(ctx, lead.ID, domain.ChannelEmail)
	if err != nil {
		t.Fatalf("last touch: %v", err)
	}
	if !ok || last.Step != 1 {
		t.Fatalf("last touch = %+v ok=%v, want step 1", last, ok)
	}

	history, err := repos.Touches.History(ctx, lead.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 (failed rows stay in the ledger)", len(history))
	}
}

func TestTouchRepositoryUpdateStatus(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	lead := seedLead(t, repos, domain.Lead{Email: "a@b.test", Status: domain.StatusNew})
	touch := testTouch(lead.ID, 1, domain.TouchSent, time.Now().UTC())
	if err := repos.Touches.RecordTouch(ctx, touch); err != nil {
		t.Fatalf("record: %v", err)
	}

	updated, err := repos.Touches.UpdateTouchStatus(ctx, ports.TouchRef{ExternalRef: touch.ExternalRef}, domain.TouchOpened)
	if err != nil {
		t.Fatalf("update by external ref: %v", err)
	}
	if updated.Status != domain.TouchOpened {
		t.Fatalf("status = %q, want opened", updated.Status)
	}

	updated, err = repos.Touches.UpdateTouchStatus(ctx, ports.TouchRef{CorrelationID: touch.CorrelationID}, domain.TouchReplied)
	if err != nil {
		t.Fatalf("update by correlation id: %v", err)
	}
	if updated.Status != domain.TouchReplied {
		t.Fatalf("status = %q, want replied", updated.Status)
	}

	_, err = repos.Touches.UpdateTouchStatus(ctx, ports.TouchRef{ExternalRef: "missing"}, domain.TouchOpened)
	if !errors.Is(err, domain.ErrTouchNotFound) {
		t.Fatalf("err = %v, want ErrTouchNotFound", err)
	}
}

func TestLockRepositoryMutualExclusion(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	lock, err := repos.Locks.Acquire(ctx, "outreach_cycle", "holder-a", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if lock.HolderID != "holder-a" {
		t.Fatalf("unexpected lock %+v", lock)
	}

	_, err = repos.Locks.Acquire(ctx, "outreach_cycle", "holder-b", time.Minute)
	if !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("err = %v, want ErrLockHeld", err)
	}

	// Re-acquire by the same holder extends the lease.
	if _, err := repos.Locks.Acquire(ctx, "outreach_cycle", "holder-a", time.Minute); err != nil {
		t.Fatalf("re-acquire by holder: %v", err)
	}

	if err := repos.Locks.Release(ctx, "outreach_cycle", "holder-b"); err != nil {
		t.Fatalf("release by non-holder: %v", err)
	}
	_, err = repos.Locks.Acquire(ctx, "outreach_cycle", "holder-b", time.Minute)
	if !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("non-holder release freed the lock: %v", err)
	}

	if err := repos.Locks.Release(ctx, "outreach_cycle", "holder-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := repos.Locks.Acquire(ctx, "outreach_cycle", "holder-b", time.Minute); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestLockRepositoryReclaimsExpired(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	if _, err := repos.Locks.Acquire(ctx, "recycle_cycle", "holder-a", -time.Second); err != nil {
		t.Fatalf("acquire expired: %v", err)
	}
	lock, err := repos.Locks.Acquire(ctx, "recycle_cycle", "holder-b", time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if lock.HolderID != "holder-b" {
		t.Fatalf("unexpected lock %+v", lock)
	}
}

func TestStateRepositoryCampaignMode(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	mode, err := repos.State.CampaignMode(ctx)
	if err != nil {
		t.Fatalf("default mode: %v", err)
	}
	if mode != domain.ModeWorking {
		t.Fatalf("mode = %q, want working (missing row defaults open)", mode)
	}

	if err := db.Exec("INSERT INTO system_state (state_key, state_value) VALUES ('campaign_mode', 'paused')").Error; err != nil {
		t.Fatalf("seed mode: %v", err)
	}
	mode, err = repos.State.CampaignMode(ctx)
	if err != nil {
		t.Fatalf("paused mode: %v", err)
	}
	if mode != domain.ModePaused {
		t.Fatalf("mode = %q, want paused", mode)
	}
}

func TestStateRepositoryHeartbeatUpsert(t *testing.T) {
	db := newTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	second := time.Now().UTC().Truncate(time.Second)
	if err := repos.State.RecordHeartbeat(ctx, "outreach_tick", first); err != nil {
		t.Fatalf("first heartbeat: %v", err)
	}
	if err := repos.State.RecordHeartbeat(ctx, "outreach_tick", second); err != nil {
		t.Fatalf("second heartbeat: %v", err)
	}

	var rec stateModel
	if err := db.Where("state_key = ?", "heartbeat:outreach_tick").Take(&rec).Error; err != nil {
		t.Fatalf("read heartbeat: %v", err)
	}
	if rec.Value != second.Format(time.RFC3339) {
		t.Fatalf("heartbeat value = %q, want %q", rec.Value, second.Format(time.RFC3339))
	}
}
