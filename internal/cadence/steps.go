package cadence

import "time"

// ActionKind classifies the state machine's verdict for a lead.
type ActionKind int

const (
	// ActionWait means the last touch is still inside its cooldown.
	ActionWait ActionKind = iota
	// ActionSend means the lead is due for the touch numbered Step.
	ActionSend
	// ActionComplete means the sequence is exhausted; the caller moves the
	// lead to StatusSequenceComplete.
	ActionComplete
)

// Action is the cadence verdict. Step is meaningful only for ActionSend.
type Action struct {
	Kind ActionKind
	Step int
}

// Schedule maps touch counts to cooldowns. Cooldowns[i] is the minimum age of
// the last touch before touch i+1 may go out; the slice must be monotonically
// non-decreasing so follow-ups land on elapsed-time offsets (day 3, day 10,
// day 20) regardless of scheduler gaps.
type Schedule struct {
	MaxSteps  int
	Cooldowns []time.Duration
}

// DefaultSchedule is a 3-step sequence: immediate, +3d, +7d, +10d.
func DefaultSchedule() Schedule {
	return Schedule{
		MaxSteps: 3,
		Cooldowns: []time.Duration{
			0,
			3 * 24 * time.Hour,
			7 * 24 * time.Hour,
			10 * 24 * time.Hour,
		},
	}
}

// NextStep decides the next cadence action from the touch count on the
// dominant channel and the age of the most recent touch. It never returns a
// step lower than touchCount+1.
func (s Schedule) NextStep(touchCount int, lastTouchAge time.Duration) Action {
	if touchCount == 0 {
		return Action{Kind: ActionSend, Step: 1}
	}
	if touchCount >= s.MaxSteps {
		return Action{Kind: ActionComplete}
	}
	if lastTouchAge < s.StepCooldown(touchCount) {
		return Action{Kind: ActionWait}
	}
	return Action{Kind: ActionSend, Step: touchCount + 1}
}

// StepCooldown returns the required age of the last touch before touch
// touchCount+1. Counts past the configured slice clamp to the final entry.
func (s Schedule) StepCooldown(touchCount int) time.Duration {
	if len(s.Cooldowns) == 0 {
		return 0
	}
	if touchCount < 0 {
		touchCount = 0
	}
	if touchCount >= len(s.Cooldowns) {
		touchCount = len(s.Cooldowns) - 1
	}
	return s.Cooldowns[touchCount]
}
