package event

import (
	"time"

	"github.com/google/uuid"
)

// Type tags a DomainEvent.
type Type string

const (
	AppointmentCreated     Type = "appointment.created"
	AppointmentConfirmed   Type = "appointment.confirmed"
	AppointmentCancelled   Type = "appointment.cancelled"
	AppointmentRescheduled Type = "appointment.rescheduled"
	AppointmentCompleted   Type = "appointment.completed"
)

// Types lists every known event type, in lifecycle order.
var Types = []Type{
	AppointmentCreated,
	AppointmentConfirmed,
	AppointmentCancelled,
	AppointmentRescheduled,
	AppointmentCompleted,
}

// DomainEvent is an immutable record of an appointment lifecycle change.
// Handlers switch on Payload's concrete type.
type DomainEvent struct {
	ID             uuid.UUID
	Type           Type
	AppointmentID  uuid.UUID
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
	OccurredAt     time.Time
	Payload        Payload
}

// Payload is implemented only by the payload types of this package.
type Payload interface {
	eventType() Type
	// Fields is the free-form key/value view used by audit and outbox records.
	Fields() map[string]interface{}
}

type Created struct {
	Range    string
	Location string
	Reason   string
}

type Confirmed struct{}

type Cancelled struct {
	Reason string
	Actor  string
	// PreviousStatus is the status the appointment was cancelled from.
	PreviousStatus string
}

type Rescheduled struct {
	OldRange string
	NewRange string
}

type Completed struct {
	Notes string
}

func (Created) eventType() Type     { return AppointmentCreated }
func (Confirmed) eventType() Type   { return AppointmentConfirmed }
func (Cancelled) eventType() Type   { return AppointmentCancelled }
func (Rescheduled) eventType() Type { return AppointmentRescheduled }
func (Completed) eventType() Type   { return AppointmentCompleted }

func (p Created) Fields() map[string]interface{} {
	return map[string]interface{}{"range": p.Range, "location": p.Location, "reason": p.Reason}
}

func (Confirmed) Fields() map[string]interface{} {
	return map[string]interface{}{}
}

func (p Cancelled) Fields() map[string]interface{} {
	return map[string]interface{}{"reason": p.Reason, "actor": p.Actor, "previous_status": p.PreviousStatus}
}

func (p Rescheduled) Fields() map[string]interface{} {
	return map[string]interface{}{"old_range": p.OldRange, "new_range": p.NewRange}
}

func (p Completed) Fields() map[string]interface{} {
	return map[string]interface{}{"notes": p.Notes}
}

// New builds an event whose Type is derived from the payload, so the tag and
// the payload can never disagree.
func New(appointmentID, professionalID, patientID uuid.UUID, at time.Time, payload Payload) DomainEvent {
	return DomainEvent{
		ID:             uuid.New(),
		Type:           payload.eventType(),
		AppointmentID:  appointmentID,
		ProfessionalID: professionalID,
		PatientID:      patientID,
		OccurredAt:     at,
		Payload:        payload,
	}
}

// Fields returns the payload's key/value view, empty for a nil payload.
func (e DomainEvent) Fields() map[string]interface{} {
	if e.Payload == nil {
		return map[string]interface{}{}
	}
	return e.Payload.Fields()
}
