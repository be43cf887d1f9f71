package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/homevisit-api/internal/config"
	"github.com/jwalitptl/homevisit-api/internal/lock"
	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
	"github.com/jwalitptl/homevisit-api/pkg/auth"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
	"github.com/jwalitptl/homevisit-api/pkg/event"
	"github.com/jwalitptl/homevisit-api/pkg/logger"
	"github.com/jwalitptl/homevisit-api/pkg/metrics"
)

// Dependencies are the collaborators the booking workflow drives.
type Dependencies struct {
	Store     repository.AppointmentStore
	Directory repository.ProfessionalDirectory
	Ownership repository.OwnershipPolicy
	Events    event.Publisher
	Locker    lock.Locker
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// Service is the booking workflow around the appointment entity: it loads
// state, checks policies, lets the entity transition, persists it, then
// publishes the recorded events.
type Service struct {
	store     repository.AppointmentStore
	directory repository.ProfessionalDirectory
	ownership repository.OwnershipPolicy
	events    event.Publisher
	locker    lock.Locker
	metrics   *metrics.Metrics
	logger    *logger.Logger
	policy    config.BookingConfig
	location  *time.Location
	now       func() time.Time
}

func NewService(deps Dependencies, policy config.BookingConfig) *Service {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	return &Service{
		store:     deps.Store,
		directory: deps.Directory,
		ownership: deps.Ownership,
		events:    deps.Events,
		locker:    deps.Locker,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("component", "appointment_service"),
		policy:    policy,
		location:  policy.Location(),
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type BookRequest struct {
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	Date           time.Time
	Start          model.TimeOfDay
	End            model.TimeOfDay
	Location       model.Location
	Reason         string
}

// Book creates a PENDING appointment for the requester's patient.
func (s *Service) Book(ctx context.Context, req BookRequest) (appt *model.Appointment, err error) {
	defer func() { s.recordBooking(err) }()

	requester, err := requesterFrom(ctx)
	if err != nil {
		return nil, err
	}
	if requester.Role != auth.RoleAdmin {
		if err := s.verifyOwnership(ctx, req.PatientID, requester.ID); err != nil {
			return nil, err
		}
	}

	professional, err := s.directory.Get(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	if !professional.IsBookable() {
		return nil, apperrors.Validation("professional %s is not accepting bookings", professional.ID)
	}

	now := s.now()
	appt, err = model.NewAppointment(model.NewAppointmentParams{
		PatientID:      req.PatientID,
		ProfessionalID: req.ProfessionalID,
		Date:           req.Date,
		Start:          req.Start,
		End:            req.End,
		Location:       req.Location,
		Reason:         req.Reason,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := s.checkSlot(professional, appt.Range(), req.Location.Province, now); err != nil {
		return nil, err
	}

	err = s.withSlotLock(ctx, appt.ProfessionalID(), appt.Date(), func(ctx context.Context) error {
		if err := s.ensureFree(ctx, appt.ProfessionalID(), appt.Range(), uuid.Nil); err != nil {
			return err
		}
		if err := s.store.Create(ctx, appt); err != nil {
			s.dbOp("create_appointment", err)
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		s.dbOp("create_appointment", nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, appt)
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID().String(),
		"professional_id", appt.ProfessionalID().String(),
		"range", appt.Range().String())
	return appt, nil
}

// Confirm is the professional accepting the visit.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, "confirm", professionalOnly, func(a *model.Appointment, now time.Time) error {
		return a.Confirm(now)
	})
}

// Cancel records the requester as the cancelling actor.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	return s.transition(ctx, id, "cancel", eitherParty, func(a *model.Appointment, now time.Time) error {
		r, _ := auth.RequesterFromContext(ctx)
		return a.Cancel(reason, r.Actor(), now)
	})
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, notes string) (*model.Appointment, error) {
	return s.transition(ctx, id, "complete", professionalOnly, func(a *model.Appointment, now time.Time) error {
		return a.Complete(notes, now)
	})
}

// AddNote never changes the status and publishes nothing.
func (s *Service) AddNote(ctx context.Context, id uuid.UUID, text string) (*model.Appointment, error) {
	return s.transition(ctx, id, "add_note", eitherParty, func(a *model.Appointment, now time.Time) error {
		a.AddNote(text, now)
		return nil
	})
}

type RescheduleRequest struct {
	Date  time.Time
	Start model.TimeOfDay
	End   model.TimeOfDay
}

// Reschedule moves the visit to a free slot of the same professional. The
// appointment's own current slot does not count as a conflict.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (appt *model.Appointment, err error) {
	defer func() { s.recordTransition("reschedule", err) }()

	appt, err = s.load(ctx, id, eitherParty)
	if err != nil {
		return nil, err
	}
	if !appt.CanModify() {
		return nil, apperrors.InvalidTransition("reschedule", string(appt.Status()))
	}
	candidate, err := model.NewTimeRange(req.Date, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	now := s.now()
	professional, err := s.directory.Get(ctx, appt.ProfessionalID())
	if err != nil {
		return nil, err
	}
	if err := s.checkSlot(professional, candidate, appt.Location().Province, now); err != nil {
		return nil, err
	}

	err = s.withSlotLock(ctx, appt.ProfessionalID(), candidate.Date, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, appt.ProfessionalID(), candidate, appt.ID()); err != nil {
			return err
		}
		if err := appt.Reschedule(req.Date, req.Start, req.End, now); err != nil {
			return err
		}
		return s.update(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, appt)
	return appt, nil
}

// Get returns one appointment to either party.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.load(ctx, id, eitherParty)
}

// ListForProfessional returns the professional's agenda within [from, to],
// cancelled visits included.
func (s *Service) ListForProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	requester, err := requesterFrom(ctx)
	if err != nil {
		return nil, err
	}
	if requester.Role != auth.RoleAdmin && requester.ID != professionalID {
		return nil, apperrors.Forbidden("only the professional can list their agenda")
	}
	if to.Before(from) {
		return nil, apperrors.Validation("range end %s is before start %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	list, err := s.store.ListForProfessional(ctx, professionalID, model.DateOnly(from), model.DateOnly(to))
	s.dbOp("list_for_professional", err)
	return list, err
}

// List returns appointments matching f, scoped to the requester: a
// professional sees only their own visits and a patient must name a
// patient they act for.
func (s *Service) List(ctx context.Context, f model.AppointmentFilters) ([]*model.Appointment, error) {
	requester, err := requesterFrom(ctx)
	if err != nil {
		return nil, err
	}
	switch requester.Role {
	case auth.RoleAdmin:
	case auth.RoleProfessional:
		if f.ProfessionalID != uuid.Nil && f.ProfessionalID != requester.ID {
			return nil, apperrors.Forbidden("only the professional can list their agenda")
		}
		f.ProfessionalID = requester.ID
	case auth.RolePatient:
		if f.PatientID == uuid.Nil {
			return nil, apperrors.Validation("patient ID is required")
		}
		if err := s.verifyOwnership(ctx, f.PatientID, requester.ID); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.Forbidden("not allowed to list appointments")
	}

	if f.Status != "" && !f.Status.Valid() {
		return nil, apperrors.Validation("unknown appointment status %q", f.Status)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, apperrors.Validation("range end %s is before start %s", f.To.Format(time.DateOnly), f.From.Format(time.DateOnly))
	}

	list, err := s.store.List(ctx, &f)
	s.dbOp("list", err)
	return list, err
}

// transition is the load, authorize, mutate, persist, publish sequence
// shared by the simple transitions.
func (s *Service) transition(ctx context.Context, id uuid.UUID, action string, who parties, apply func(*model.Appointment, time.Time) error) (appt *model.Appointment, err error) {
	defer func() { s.recordTransition(action, err) }()

	appt, err = s.load(ctx, id, who)
	if err != nil {
		return nil, err
	}
	if err := apply(appt, s.now()); err != nil {
		return nil, err
	}
	if err := s.update(ctx, appt); err != nil {
		return nil, err
	}
	s.publish(ctx, appt)
	return appt, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID, who parties) (*model.Appointment, error) {
	requester, err := requesterFrom(ctx)
	if err != nil {
		return nil, err
	}
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, requester, appt, who); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) update(ctx context.Context, appt *model.Appointment) error {
	err := s.store.Update(ctx, appt)
	s.dbOp("update_appointment", err)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return nil
}

// checkSlot applies the booking-time policies that need no storage.
func (s *Service) checkSlot(p *model.Professional, slot model.TimeRange, province string, now time.Time) error {
	if s.startsAt(slot).Before(now) {
		return apperrors.Validation("appointment %s is in the past", slot)
	}
	if s.policy.EnforceAvailability && !p.AvailableFor(slot) {
		return apperrors.Validation("professional is not available on %s", slot)
	}
	if s.policy.EnforceCredentials && !p.HasValidCredential(province, slot.Date) {
		return apperrors.Validation("professional has no valid credential for %s on %s",
			province, slot.Date.Format(time.DateOnly))
	}
	return nil
}

// startsAt interprets the calendar date and time of day in the booking zone.
func (s *Service) startsAt(slot model.TimeRange) time.Time {
	y, m, d := slot.Date.Date()
	return time.Date(y, m, d, slot.Start.Hour, slot.Start.Minute, 0, 0, s.location)
}

func (s *Service) ensureFree(ctx context.Context, professionalID uuid.UUID, slot model.TimeRange, exclude uuid.UUID) error {
	existing, err := s.store.ListForProfessional(ctx, professionalID, slot.Date, slot.Date)
	s.dbOp("list_for_professional", err)
	if err != nil {
		return fmt.Errorf("failed to load agenda: %w", err)
	}
	if model.HasConflict(slot, existing, exclude) {
		if s.metrics != nil {
			s.metrics.BookingConflicts.Inc()
		}
		return apperrors.Conflict(fmt.Sprintf("slot %s overlaps an existing appointment", slot))
	}
	return nil
}

func (s *Service) withSlotLock(ctx context.Context, professionalID uuid.UUID, date time.Time, fn func(context.Context) error) error {
	err := s.locker.WithSlotLock(ctx, professionalID, date, fn)
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return apperrors.Conflict("another booking for this professional and date is in progress")
	}
	return err
}

// publish hands the recorded events to the bus. The appointment is already
// persisted, so a closed bus is logged rather than returned.
func (s *Service) publish(ctx context.Context, appt *model.Appointment) {
	for _, evt := range appt.PullEvents() {
		if err := s.events.Publish(ctx, evt); err != nil {
			s.logger.Error(err, "failed to publish event",
				"event_type", string(evt.Type),
				"appointment_id", evt.AppointmentID.String())
		}
	}
}

func (s *Service) recordBooking(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.BookingAttempts.WithLabelValues(outcome(err)).Inc()
}

func (s *Service) recordTransition(action string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Transitions.WithLabelValues(action, outcome(err)).Inc()
}

func (s *Service) dbOp(op string, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return apperrors.CodeOf(err).String()
}
