package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Handler consumes a single delivery. Returning an error asks the broker to
// redeliver where the transport supports it.
type Handler func(ctx context.Context, msg *Message) error

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, msg *Message) error
	// Subscribe delivers messages of topic to h until ctx is done.
	Subscribe(ctx context.Context, topic string, h Handler) error
	Close() error
}

// Message is the envelope put on the wire for every domain event.
type Message struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewMessage(id uuid.UUID, eventType string, payload json.RawMessage, at time.Time) *Message {
	return &Message{ID: id, Type: eventType, Payload: payload, OccurredAt: at.UTC()}
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}
