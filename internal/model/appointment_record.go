package model

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

// AppointmentRecord is the flat, storage-facing shape of an Appointment.
type AppointmentRecord struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	ProfessionalID uuid.UUID         `db:"professional_id" json:"professional_id"`
	Date           time.Time         `db:"date" json:"date"`
	StartTime      string            `db:"start_time" json:"start_time"`
	EndTime        string            `db:"end_time" json:"end_time"`
	Province       string            `db:"province" json:"province"`
	District       string            `db:"district" json:"district"`
	Neighborhood   string            `db:"neighborhood" json:"neighborhood"`
	Street         string            `db:"street" json:"street"`
	StreetNumber   string            `db:"street_number" json:"street_number"`
	Latitude       *float64          `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64          `db:"longitude" json:"longitude,omitempty"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Reason         string            `db:"reason" json:"reason"`
	Notes          string            `db:"notes" json:"notes"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// ToRecord flattens the appointment for persistence or transport.
func (a *Appointment) ToRecord() AppointmentRecord {
	return AppointmentRecord{
		ID:             a.id,
		PatientID:      a.patientID,
		ProfessionalID: a.professionalID,
		Date:           a.slot.Date,
		StartTime:      a.slot.Start.String(),
		EndTime:        a.slot.End.String(),
		Province:       a.location.Province,
		District:       a.location.District,
		Neighborhood:   a.location.Neighborhood,
		Street:         a.location.Street,
		StreetNumber:   a.location.StreetNumber,
		Latitude:       a.location.Latitude,
		Longitude:      a.location.Longitude,
		Status:         a.status,
		Reason:         a.reason,
		Notes:          a.notes,
		CreatedAt:      a.createdAt,
		UpdatedAt:      a.updatedAt,
	}
}

// Restore rehydrates a stored appointment. It checks shape, not business
// rules, and records no events.
func Restore(r AppointmentRecord) (*Appointment, error) {
	if !r.Status.Valid() {
		return nil, apperrors.Validation("unknown appointment status %q", r.Status)
	}
	start, err := ParseTimeOfDay(r.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseTimeOfDay(r.EndTime)
	if err != nil {
		return nil, err
	}
	slot, err := NewTimeRange(r.Date, start, end)
	if err != nil {
		return nil, err
	}
	return &Appointment{
		id:             r.ID,
		patientID:      r.PatientID,
		professionalID: r.ProfessionalID,
		slot:           slot,
		location: Location{
			Province:     r.Province,
			District:     r.District,
			Neighborhood: r.Neighborhood,
			Street:       r.Street,
			StreetNumber: r.StreetNumber,
			Latitude:     r.Latitude,
			Longitude:    r.Longitude,
		},
		status:    r.Status,
		reason:    r.Reason,
		notes:     r.Notes,
		createdAt: r.CreatedAt,
		updatedAt: r.UpdatedAt,
	}, nil
}

// AppointmentFilters narrows store listings.
type AppointmentFilters struct {
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
	Status         AppointmentStatus
	From           time.Time
	To             time.Time
}
