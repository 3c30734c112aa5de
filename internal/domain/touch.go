package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TouchStatus is the delivery state of a recorded touch. A touch is created
// as sent or failed; opened and replied arrive later via delivery callbacks.
type TouchStatus string

const (
	TouchSent    TouchStatus = "sent"
	TouchFailed  TouchStatus = "failed"
	TouchOpened  TouchStatus = "opened"
	TouchReplied TouchStatus = "replied"
)

// Touch is one immutable contact attempt. Rows are append-only; only the
// status field moves, and only through asynchronous delivery callbacks.
type Touch struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	Channel       Channel
	Cycle         int
	Step          int
	VariantID     int
	Status        TouchStatus
	CorrelationID string
	ExternalRef   string
	Payload       json.RawMessage
	SentAt        time.Time
}

// CorrelationID derives the idempotency key for one cadence step on one
// channel within one sequence cycle. It is deterministic so overlapping ticks
// produce the same key and collide on the ledger's unique constraint instead
// of double-sending; the cycle component keeps recycled leads reachable with
// fresh keys.
func CorrelationID(leadID uuid.UUID, cycle int, channel Channel, step int) string {
	return fmt.Sprintf("%s:cycle-%d:%s:step-%d", leadID, cycle, channel, step)
}

// MessageVariant is one configured A/B content variant for a channel.
type MessageVariant struct {
	ID      int
	Subject string
	Body    string
}

// Mode is the process-wide campaign toggle consulted once per tick.
type Mode string

const (
	ModeWorking Mode = "working"
	ModePaused  Mode = "paused"
)
