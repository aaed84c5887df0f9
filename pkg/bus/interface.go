// Package bus provides asynchronous topic-based delivery of internal
// events, such as moderation audit entries, off the request path.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned when a message cannot be queued without blocking.
var ErrQueueFull = errors.New("bus queue is full")

// ErrStopped is returned after Stop.
var ErrStopped = errors.New("bus is stopped")

// Message represents a message flowing through the bus.
type Message struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"` // Partition hint, e.g. guild id
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage marshals payload into a message with a fresh id.
func NewMessage(topic, key string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Key:       key,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Handler is a function that processes messages.
type Handler func(ctx context.Context, msg *Message) error

// Bus is the interface for message delivery.
type Bus interface {
	// Start starts delivering messages to handlers.
	Start() error

	// Stop stops the bus and waits for in-flight handlers.
	Stop() error

	// Subscribe registers a handler for a topic.
	Subscribe(topic string, handler Handler)

	// Publish queues a message without waiting for handlers.
	Publish(ctx context.Context, msg *Message) error

	// GetMetrics returns current bus counters.
	GetMetrics() map[string]uint64
}
