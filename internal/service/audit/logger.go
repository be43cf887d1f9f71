package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
	"github.com/jwalitptl/homevisit-api/pkg/auth"
	"github.com/jwalitptl/homevisit-api/pkg/event"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditLogger records every appointment event in the audit trail. It is a
// bus observer and writes synchronously; a failed write is reported back to
// the bus, which logs it.
type AuditLogger struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewAuditLogger(repo repository.AuditRepository) *AuditLogger {
	return &AuditLogger{repo: repo, now: time.Now}
}

func (l *AuditLogger) Handle(ctx context.Context, evt event.DomainEvent) error {
	metadata, err := json.Marshal(evt.Fields())
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}

	entry := &model.AuditLog{
		ID:         uuid.New(),
		Action:     string(evt.Type),
		EntityType: model.AuditEntityAppointment,
		EntityID:   evt.AppointmentID,
		Metadata:   metadata,
		OccurredAt: evt.OccurredAt,
		CreatedAt:  l.now().UTC(),
	}
	if r, ok := auth.RequesterFromContext(ctx); ok {
		id := r.ID
		entry.ActorID = &id
	}

	return l.repo.Create(ctx, entry)
}
