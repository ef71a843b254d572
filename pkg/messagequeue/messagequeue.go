package messagequeue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher sends domain events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, data any) error
	Close() error
}

// Event is the envelope every published message is wrapped in.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh id.
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// NoopPublisher discards events. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                               { return nil }
