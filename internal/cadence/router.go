package cadence

import (
	"time"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

// Decision is the router's verdict for a lead on this cycle.
type Decision int

const (
	// DecisionSkip means the lead stays in place and is retried next tick.
	DecisionSkip Decision = iota
	// DecisionSend means the returned channel should carry the next touch.
	DecisionSend
	// DecisionNoContactInfo means the lead has no reachable address at all;
	// the caller moves it to StatusNoContactInfo.
	DecisionNoContactInfo
)

// RouterConfig holds the time-window and spacing rules for channel choice.
type RouterConfig struct {
	// Business-hours window for SMS/voice, evaluated in Location.
	HourStart int
	HourEnd   int
	Location  *time.Location
	// Sunday is excluded from the window.
	// PhoneChannel is the channel used for phone outreach during business
	// hours (sms or voice).
	PhoneChannel domain.Channel
	// Minimum spacing since the last non-failed touch on each channel.
	EmailSpacing time.Duration
	PhoneSpacing time.Duration
}

// DefaultRouterConfig is the 08:00-18:00 Mon-Sat window with 24h email and
// 3-day phone spacing.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		HourStart:    8,
		HourEnd:      18,
		Location:     time.UTC,
		PhoneChannel: domain.ChannelSMS,
		EmailSpacing: 24 * time.Hour,
		PhoneSpacing: 72 * time.Hour,
	}
}

// Router decides the eligible channel for a lead. It is pure: all inputs are
// passed in, including the phone-quota answer.
type Router struct {
	cfg RouterConfig
}

func NewRouter(cfg RouterConfig) Router {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PhoneChannel == "" {
		cfg.PhoneChannel = domain.ChannelSMS
	}
	return Router{cfg: cfg}
}

// Route applies the routing rules in order:
//
//  1. Off-hours with no email: skip this cycle.
//  2. No contact info at all: report no-contact-info.
//  3. Prefer the phone channel during business hours when a phone exists and
//     the daily quota has room; otherwise email, which is available 24/7.
//  4. A touch on the chosen channel younger than its minimum spacing: skip.
//
// A lead with both email and phone off-hours always routes to email, which
// prevents starvation of phone-heavy pools overnight.
func (r Router) Route(lead domain.Lead, now time.Time, history []domain.Touch, phoneQuotaOK bool) (domain.Channel, Decision) {
	inWindow := r.InBusinessHours(now)

	if !inWindow && !lead.HasEmail() {
		return "", DecisionSkip
	}
	if !lead.HasContactInfo() {
		return "", DecisionNoContactInfo
	}

	channel := domain.ChannelEmail
	spacing := r.cfg.EmailSpacing
	if inWindow && lead.HasPhone() && phoneQuotaOK {
		channel = r.cfg.PhoneChannel
		spacing = r.cfg.PhoneSpacing
	}
	if channel == domain.ChannelEmail && !lead.HasEmail() {
		// Phone-only lead in window but quota exhausted: wait for quota.
		return "", DecisionSkip
	}

	if last, ok := lastDelivered(history, channel); ok {
		if now.Sub(last.SentAt) < spacing {
			return channel, DecisionSkip
		}
	}
	return channel, DecisionSend
}

// PhoneChannel returns the channel used for phone outreach, so callers can
// check its quota before routing.
func (r Router) PhoneChannel() domain.Channel {
	return r.cfg.PhoneChannel
}

// InBusinessHours reports whether now falls inside the SMS/voice window.
func (r Router) InBusinessHours(now time.Time) bool {
	local := now.In(r.cfg.Location)
	if local.Weekday() == time.Sunday {
		return false
	}
	hour := local.Hour()
	return hour >= r.cfg.HourStart && hour < r.cfg.HourEnd
}

// SequenceStats derives the cadence ladder inputs from a lead's history for
// the current cycle. The count is the total across channels, so switching
// channels mid-sequence neither restarts nor stalls the ladder, and the age
// baseline is the most recent touch on any channel. Failed touches do not
// advance the sequence.
func SequenceStats(history []domain.Touch) (count int, last time.Time, ok bool) {
	for _, touch := range history {
		if touch.Status == domain.TouchFailed {
			continue
		}
		count++
		if touch.SentAt.After(last) {
			last = touch.SentAt
			ok = true
		}
	}
	return count, last, ok
}

func lastDelivered(history []domain.Touch, channel domain.Channel) (domain.Touch, bool) {
	var found domain.Touch
	var ok bool
	for _, touch := range history {
		if touch.Channel != channel || touch.Status == domain.TouchFailed {
			continue
		}
		if !ok || touch.SentAt.After(found.SentAt) {
			found = touch
			ok = true
		}
	}
	return found, ok
}
