package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/pkg/event"
	"github.com/jwalitptl/homevisit-api/pkg/logger"
)

// Dispatcher delivers a rendered notification over one channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *model.Notification) error
}

// Notifier turns appointment events into notifications for the patient and
// the professional. It reads events only; it never touches the appointment.
type Notifier struct {
	dispatcher Dispatcher
	logger     *logger.Logger
	now        func() time.Time
}

func NewNotifier(dispatcher Dispatcher, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{
		dispatcher: dispatcher,
		logger:     log.With("component", "notifier"),
		now:        time.Now,
	}
}

// Handle is the event.Handler entry point. Unknown payloads are ignored.
func (n *Notifier) Handle(ctx context.Context, evt event.DomainEvent) error {
	subject, body, ok := render(evt)
	if !ok {
		n.logger.Debug("no notification for event", "event_type", string(evt.Type))
		return nil
	}

	var errs []error
	for _, target := range []struct {
		audience model.NotificationAudience
		userID   uuid.UUID
	}{
		{model.AudiencePatient, evt.PatientID},
		{model.AudienceProfessional, evt.ProfessionalID},
	} {
		if target.userID == uuid.Nil {
			continue
		}
		notif := &model.Notification{
			ID:            uuid.New(),
			AppointmentID: evt.AppointmentID,
			EventType:     string(evt.Type),
			Audience:      target.audience,
			UserID:        target.userID,
			Subject:       subject,
			Content:       body,
			Status:        model.NotificationStatusPending,
			CreatedAt:     n.now().UTC(),
		}
		if err := n.dispatcher.Dispatch(ctx, notif); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", target.audience, err))
		}
	}
	return errors.Join(errs...)
}

// render produces subject and body per event type. Optional fields that are
// empty are left out of the text.
func render(evt event.DomainEvent) (subject, body string, ok bool) {
	switch p := evt.Payload.(type) {
	case event.Created:
		subject = "Home visit requested"
		body = fmt.Sprintf("A home visit was requested for %s.", orUnknown(p.Range))
		if p.Location != "" {
			body += " Location: " + p.Location + "."
		}
		if p.Reason != "" {
			body += " Reason: " + p.Reason + "."
		}
	case event.Confirmed:
		subject = "Home visit confirmed"
		body = "Your home visit has been confirmed."
	case event.Cancelled:
		subject = "Home visit cancelled"
		body = "Your home visit has been cancelled."
		if p.Reason != "" {
			body += " Reason: " + p.Reason + "."
		}
	case event.Rescheduled:
		subject = "Home visit rescheduled"
		body = fmt.Sprintf("Your home visit moved from %s to %s.", orUnknown(p.OldRange), orUnknown(p.NewRange))
	case event.Completed:
		subject = "Home visit completed"
		body = "Your home visit has been completed."
		if notes := strings.TrimSpace(p.Notes); notes != "" {
			body += " Notes: " + notes
		}
	default:
		return "", "", false
	}
	return subject, body, true
}

func orUnknown(s string) string {
	if s == "" {
		return "an unspecified time"
	}
	return s
}
