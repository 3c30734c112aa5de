package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the single source of truth for a lead's lifecycle position.
// Transitions move forward only, except the recycler's explicit return to
// StatusNew after the recycle cooldown elapses.
type Status string

const (
	StatusNew              Status = "new"
	StatusResearchDone     Status = "research_done"
	StatusOutreachSent     Status = "outreach_sent"
	StatusSequenceComplete Status = "sequence_complete"
	StatusResponded        Status = "responded"
	StatusCustomer         Status = "customer"
	StatusNoContactInfo    Status = "no_contact_info"
	StatusFailed           Status = "failed"
)

// ContactableStatuses are the statuses eligible for a touch. StatusOutreachSent
// stays contactable so leads mid-sequence keep receiving follow-ups.
var ContactableStatuses = []Status{StatusNew, StatusResearchDone, StatusOutreachSent}

// RecyclableStatuses are the statuses the recycler may return to StatusNew.
var RecyclableStatuses = []Status{StatusOutreachSent, StatusSequenceComplete}

// Channel identifies an outreach delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
)

// Lead is a prospective business contact owned by the ingestion pipeline and
// mutated here only through status transitions and touch bookkeeping.
type Lead struct {
	ID        uuid.UUID
	CRMID     string
	FirstName string
	Email     string
	Phone     string
	Company   string
	Status    Status
	// SequenceCycle counts how many times the lead has been through the
	// cadence. The recycler bumps it when returning a lead to StatusNew, so
	// a reused lead starts a fresh ladder with fresh correlation IDs.
	SequenceCycle int
	LastTouchAt   *time.Time
	TotalTouches  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (l Lead) HasEmail() bool {
	return strings.TrimSpace(l.Email) != ""
}

func (l Lead) HasPhone() bool {
	return strings.TrimSpace(l.Phone) != ""
}

func (l Lead) HasContactInfo() bool {
	return l.HasEmail() || l.HasPhone()
}
