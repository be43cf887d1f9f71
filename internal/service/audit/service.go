package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
)

const defaultHistoryLimit = 100

// Service is the read and retention side of the audit trail.
type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// History returns the trail of one appointment, newest first.
func (s *Service) History(ctx context.Context, appointmentID uuid.UUID, limit int) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}
	return s.repo.List(ctx, model.AuditLogFilters{
		EntityType: model.AuditEntityAppointment,
		EntityID:   appointmentID,
		Limit:      limit,
	})
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.Cleanup(ctx, before)
}
