package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Envelope is what the outbox relay puts on the wire.
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AppointmentID string          `json:"appointment_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// NotificationChannel carries rendered notifications for in-app delivery.
const NotificationChannel = "notifications"
