package cadence

import (
	"testing"
	"time"
)

func TestNextStep(t *testing.T) {
	schedule := DefaultSchedule()

	tests := []struct {
		name         string
		touchCount   int
		lastTouchAge time.Duration
		want         Action
	}{
		{"first touch goes out immediately", 0, 0, Action{Kind: ActionSend, Step: 1}},
		{"second touch waits inside cooldown", 1, 24 * time.Hour, Action{Kind: ActionWait}},
		{"second touch due after three days", 1, 73 * time.Hour, Action{Kind: ActionSend, Step: 2}},
		{"third touch waits inside seven days", 2, 6 * 24 * time.Hour, Action{Kind: ActionWait}},
		{"third touch due after seven days", 2, 8 * 24 * time.Hour, Action{Kind: ActionSend, Step: 3}},
		{"sequence completes at max steps", 3, 30 * 24 * time.Hour, Action{Kind: ActionComplete}},
		{"count past max still completes", 7, time.Hour, Action{Kind: ActionComplete}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := schedule.NextStep(tc.touchCount, tc.lastTouchAge)
			if got != tc.want {
				t.Fatalf("NextStep(%d, %s) = %+v, want %+v", tc.touchCount, tc.lastTouchAge, got, tc.want)
			}
		})
	}
}

func TestNextStepNeverRegresses(t *testing.T) {
	schedule := DefaultSchedule()
	for count := 0; count < schedule.MaxSteps; count++ {
		for _, age := range []time.Duration{0, time.Hour, 100 * 24 * time.Hour} {
			action := schedule.NextStep(count, age)
			if action.Kind == ActionSend && action.Step != count+1 {
				t.Fatalf("NextStep(%d, %s) returned step %d, want %d", count, age, action.Step, count+1)
			}
		}
	}
}

func TestStepCooldownMonotonic(t *testing.T) {
	schedule := DefaultSchedule()
	previous := time.Duration(-1)
	for count := 0; count < len(schedule.Cooldowns)+2; count++ {
		cooldown := schedule.StepCooldown(count)
		if cooldown < previous {
			t.Fatalf("cooldown decreased at count %d: %s < %s", count, cooldown, previous)
		}
		previous = cooldown
	}
}
