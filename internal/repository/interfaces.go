package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/homevisit-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentStore persists appointments. Implementations return
	// apperrors NotFound for unknown ids.
	AppointmentStore interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		// ListForProfessional returns every appointment of the professional
		// dated within [from, to], cancelled ones included.
		ListForProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	}

	// ProfessionalDirectory is the read side of the professional registry.
	ProfessionalDirectory interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Professional, error)
		// GetCandidates pre-filters by zone when the fields are set; the
		// search strategies apply the authoritative filtering.
		GetCandidates(ctx context.Context, filter CandidateFilter) ([]*model.Professional, error)
	}

	// OwnershipPolicy decides whether requesterID may act for patientID.
	OwnershipPolicy interface {
		Verify(ctx context.Context, patientID, requesterID uuid.UUID) (bool, error)
	}

	// ContactResolver maps a user to a deliverable email address.
	ContactResolver interface {
		EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters model.AuditLogFilters) ([]*model.AuditLog, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// CandidateFilter is the storage-side pre-filter for directory lookups.
type CandidateFilter struct {
	Province     string
	District     string
	Neighborhood string
	OnlyActive   bool
}
