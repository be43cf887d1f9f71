package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is one append-only trail entry. Action carries the event type
// (for example "appointment.cancelled").
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	AuditEntityAppointment = "appointment"
)

type AuditLogFilters struct {
	EntityType string
	EntityID   uuid.UUID
	Action     string
	Limit      int
}
