package ports

import "context"

const (
	EventTouchRecorded = "outreach.touch.recorded"
	EventTickCompleted = "outreach.tick.completed"
)

// Publisher emits engine events for downstream analytics consumers.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}
