package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
	"github.com/jwalitptl/homevisit-api/pkg/event"
)

type AppointmentStatus string

const (
	AppointmentStatusPending     AppointmentStatus = "pending"
	AppointmentStatusConfirmed   AppointmentStatus = "confirmed"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
)

// Business rules for the visit length.
const (
	MinAppointmentDuration = 30 * time.Minute
	MaxAppointmentDuration = 4 * time.Hour
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusRescheduled,
		AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCancelled || s == AppointmentStatusCompleted
}

// Appointment is a home visit between a patient and a professional. Its
// fields change only through the transition methods below; every successful
// transition records a domain event that PullEvents hands to the caller.
//
// An Appointment is not safe for concurrent mutation.
type Appointment struct {
	id             uuid.UUID
	patientID      uuid.UUID
	professionalID uuid.UUID
	slot           TimeRange
	location       Location
	status         AppointmentStatus
	reason         string
	notes          string
	createdAt      time.Time
	updatedAt      time.Time

	events []event.DomainEvent
}

type NewAppointmentParams struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	Date           time.Time
	Start          TimeOfDay
	End            TimeOfDay
	Location       Location
	Reason         string
}

// NewAppointment validates p and returns a PENDING appointment. A nil ID is
// replaced by a fresh one.
func NewAppointment(p NewAppointmentParams, now time.Time) (*Appointment, error) {
	if p.PatientID == uuid.Nil {
		return nil, apperrors.Validation("patient ID is required")
	}
	if p.ProfessionalID == uuid.Nil {
		return nil, apperrors.Validation("professional ID is required")
	}
	slot, err := validSlot(p.Date, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	if err := p.Location.Validate(); err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	a := &Appointment{
		id:             p.ID,
		patientID:      p.PatientID,
		professionalID: p.ProfessionalID,
		slot:           slot,
		location:       p.Location,
		status:         AppointmentStatusPending,
		reason:         strings.TrimSpace(p.Reason),
		createdAt:      now,
		updatedAt:      now,
	}
	a.record(now, event.Created{
		Range:    slot.String(),
		Location: a.location.Province,
		Reason:   a.reason,
	})
	return a, nil
}

func validSlot(date time.Time, start, end TimeOfDay) (TimeRange, error) {
	slot, err := NewTimeRange(date, start, end)
	if err != nil {
		return TimeRange{}, err
	}
	d := slot.Duration()
	if d < MinAppointmentDuration || d > MaxAppointmentDuration {
		return TimeRange{}, apperrors.Validation("appointment duration %v must be between %v and %v",
			d, MinAppointmentDuration, MaxAppointmentDuration)
	}
	return slot, nil
}

func (a *Appointment) ID() uuid.UUID             { return a.id }
func (a *Appointment) PatientID() uuid.UUID      { return a.patientID }
func (a *Appointment) ProfessionalID() uuid.UUID { return a.professionalID }
func (a *Appointment) Range() TimeRange          { return a.slot }
func (a *Appointment) Date() time.Time           { return a.slot.Date }
func (a *Appointment) Start() TimeOfDay          { return a.slot.Start }
func (a *Appointment) End() TimeOfDay            { return a.slot.End }
func (a *Appointment) Location() Location        { return a.location }
func (a *Appointment) Status() AppointmentStatus { return a.status }
func (a *Appointment) Reason() string            { return a.reason }
func (a *Appointment) Notes() string             { return a.notes }
func (a *Appointment) CreatedAt() time.Time      { return a.createdAt }
func (a *Appointment) UpdatedAt() time.Time      { return a.updatedAt }
func (a *Appointment) IsCancelled() bool         { return a.status == AppointmentStatusCancelled }
func (a *Appointment) PendingEvents() int        { return len(a.events) }

// CanModify reports whether the appointment may still be rescheduled.
func (a *Appointment) CanModify() bool {
	return !a.status.Terminal()
}

// Confirm accepts a PENDING booking, or the new time of a RESCHEDULED one.
func (a *Appointment) Confirm(now time.Time) error {
	if a.status != AppointmentStatusPending && a.status != AppointmentStatusRescheduled {
		return apperrors.InvalidTransition("confirm", string(a.status))
	}
	a.status = AppointmentStatusConfirmed
	a.updatedAt = now
	a.record(now, event.Confirmed{})
	return nil
}

// Cancel is legal from every status except COMPLETED, so cancelling twice
// succeeds and records a second event. actor identifies who asked for it and
// is carried in the event only.
func (a *Appointment) Cancel(reason, actor string, now time.Time) error {
	if a.status == AppointmentStatusCompleted {
		return apperrors.InvalidTransition("cancel", string(a.status))
	}
	previous := a.status
	reason = strings.TrimSpace(reason)
	if reason != "" {
		a.appendNote("Cancelled: " + reason)
	}
	a.status = AppointmentStatusCancelled
	a.updatedAt = now
	a.record(now, event.Cancelled{
		Reason:         reason,
		Actor:          actor,
		PreviousStatus: string(previous),
	})
	return nil
}

// Complete closes a CONFIRMED or RESCHEDULED visit.
func (a *Appointment) Complete(finalNotes string, now time.Time) error {
	if a.status != AppointmentStatusConfirmed && a.status != AppointmentStatusRescheduled {
		return apperrors.InvalidTransition("complete", string(a.status))
	}
	finalNotes = strings.TrimSpace(finalNotes)
	a.appendNote(finalNotes)
	a.status = AppointmentStatusCompleted
	a.updatedAt = now
	a.record(now, event.Completed{Notes: finalNotes})
	return nil
}

// Reschedule moves the visit, keeping its identity. Conflict-freedom of the
// new slot is the caller's check (see HasConflict).
func (a *Appointment) Reschedule(date time.Time, start, end TimeOfDay, now time.Time) error {
	if !a.CanModify() {
		return apperrors.InvalidTransition("reschedule", string(a.status))
	}
	slot, err := validSlot(date, start, end)
	if err != nil {
		return err
	}
	old := a.slot
	a.slot = slot
	a.status = AppointmentStatusRescheduled
	a.updatedAt = now
	a.record(now, event.Rescheduled{
		OldRange: old.String(),
		NewRange: slot.String(),
	})
	return nil
}

// AddNote appends text in any status without emitting an event. Blank text
// is ignored.
func (a *Appointment) AddNote(text string, now time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.appendNote(text)
	a.updatedAt = now
}

// PullEvents returns the events recorded since the last call and clears them.
func (a *Appointment) PullEvents() []event.DomainEvent {
	events := a.events
	a.events = nil
	return events
}

func (a *Appointment) appendNote(text string) {
	if text == "" {
		return
	}
	if a.notes == "" {
		a.notes = text
		return
	}
	a.notes += "\n" + text
}

func (a *Appointment) record(now time.Time, payload event.Payload) {
	a.events = append(a.events, event.New(a.id, a.professionalID, a.patientID, now, payload))
}
