package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// NotificationAudience names who a notification is for. Recipients are
// resolved by the dispatcher, not by the notifier.
type NotificationAudience string

const (
	AudiencePatient      NotificationAudience = "patient"
	AudienceProfessional NotificationAudience = "professional"
)

type Notification struct {
	ID            uuid.UUID            `json:"id"`
	AppointmentID uuid.UUID            `json:"appointment_id"`
	EventType     string               `json:"event_type"`
	Audience      NotificationAudience `json:"audience"`
	UserID        uuid.UUID            `json:"user_id"`
	Subject       string               `json:"subject"`
	Content       string               `json:"content"`
	Recipient     string               `json:"recipient,omitempty"`
	Status        NotificationStatus   `json:"status"`
	LastError     string               `json:"last_error,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	SentAt        *time.Time           `json:"sent_at,omitempty"`
}
