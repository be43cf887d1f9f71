package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/homevisit-api/internal/model"
)

type BookRequest struct {
	PatientID      uuid.UUID      `json:"patient_id" binding:"required"`
	ProfessionalID uuid.UUID      `json:"professional_id" binding:"required"`
	Date           string         `json:"date" binding:"required,isodate"`
	StartTime      string         `json:"start_time" binding:"required,hhmm"`
	EndTime        string         `json:"end_time" binding:"required,hhmm"`
	Location       model.Location `json:"location"`
	Reason         string         `json:"reason" binding:"max=500"`
}

type RescheduleRequest struct {
	Date      string `json:"date" binding:"required,isodate"`
	StartTime string `json:"start_time" binding:"required,hhmm"`
	EndTime   string `json:"end_time" binding:"required,hhmm"`
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type CompleteRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

type NoteRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

type ListQuery struct {
	PatientID      string `form:"patient_id" binding:"omitempty,uuid"`
	ProfessionalID string `form:"professional_id" binding:"omitempty,uuid"`
	Status         string `form:"status" binding:"omitempty,oneof=pending confirmed rescheduled cancelled completed"`
	From           string `form:"from" binding:"omitempty,isodate"`
	To             string `form:"to" binding:"omitempty,isodate"`
}

// Response is the wire shape of an appointment.
type Response struct {
	ID             uuid.UUID               `json:"id"`
	PatientID      uuid.UUID               `json:"patient_id"`
	ProfessionalID uuid.UUID               `json:"professional_id"`
	Date           string                  `json:"date"`
	StartTime      string                  `json:"start_time"`
	EndTime        string                  `json:"end_time"`
	Location       model.Location          `json:"location"`
	Status         model.AppointmentStatus `json:"status"`
	Reason         string                  `json:"reason,omitempty"`
	Notes          string                  `json:"notes,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

func toResponse(a *model.Appointment) Response {
	return Response{
		ID:             a.ID(),
		PatientID:      a.PatientID(),
		ProfessionalID: a.ProfessionalID(),
		Date:           a.Date().Format(time.DateOnly),
		StartTime:      a.Start().String(),
		EndTime:        a.End().String(),
		Location:       a.Location(),
		Status:         a.Status(),
		Reason:         a.Reason(),
		Notes:          a.Notes(),
		CreatedAt:      a.CreatedAt(),
		UpdatedAt:      a.UpdatedAt(),
	}
}

func toResponses(list []*model.Appointment) []Response {
	out := make([]Response, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	return out
}
