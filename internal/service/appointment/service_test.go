package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/homevisit-api/internal/config"
	"github.com/jwalitptl/homevisit-api/internal/lock"
	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
	"github.com/jwalitptl/homevisit-api/pkg/auth"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
	"github.com/jwalitptl/homevisit-api/pkg/event"
	"github.com/jwalitptl/homevisit-api/pkg/metrics"
)

var testNow = time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)

// memoryStore keeps records, so every Get hands out a fresh entity like a
// real database would.
type memoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.AppointmentRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[uuid.UUID]model.AppointmentRecord)}
}

func (m *memoryStore) Create(_ context.Context, a *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[a.ID()] = a.ToRecord()
	return nil
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return model.Restore(r)
}

func (m *memoryStore) Update(_ context.Context, a *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[a.ID()]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	m.rows[a.ID()] = a.ToRecord()
	return nil
}

func (m *memoryStore) ListForProfessional(_ context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Appointment
	for _, r := range m.rows {
		if r.ProfessionalID != professionalID || r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		a, err := model.Restore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryStore) List(_ context.Context, f *model.AppointmentFilters) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Appointment
	for _, r := range m.rows {
		switch {
		case f.ProfessionalID != uuid.Nil && r.ProfessionalID != f.ProfessionalID,
			f.PatientID != uuid.Nil && r.PatientID != f.PatientID,
			f.Status != "" && r.Status != f.Status,
			!f.From.IsZero() && r.Date.Before(f.From),
			!f.To.IsZero() && r.Date.After(f.To):
			continue
		}
		a, err := model.Restore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

type staticDirectory map[uuid.UUID]*model.Professional

func (d staticDirectory) Get(_ context.Context, id uuid.UUID) (*model.Professional, error) {
	p, ok := d[id]
	if !ok {
		return nil, apperrors.NotFound("professional", nil)
	}
	return p, nil
}

func (d staticDirectory) GetCandidates(context.Context, repository.CandidateFilter) ([]*model.Professional, error) {
	return nil, nil
}

type ownershipFunc func(patientID, requesterID uuid.UUID) bool

func (f ownershipFunc) Verify(_ context.Context, patientID, requesterID uuid.UUID) (bool, error) {
	return f(patientID, requesterID), nil
}

// selfOnly lets a patient act only for themselves.
var selfOnly = ownershipFunc(func(p, r uuid.UUID) bool { return p == r })

type recorder struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recorder) Handle(_ context.Context, evt event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc          *Service
	store        *memoryStore
	observed     *recorder
	professional *model.Professional
	patient      uuid.UUID
}

func newFixture(t *testing.T, policy config.BookingConfig) *fixture {
	t.Helper()
	window, err := model.NewAvailabilityWindow([]time.Weekday{time.Saturday, time.Sunday},
		model.MustTimeOfDay("08:00"), model.MustTimeOfDay("14:00"))
	require.NoError(t, err)
	from, _ := model.ParseDate("2020-01-01")
	cred, err := model.NewCredential("MP-77", "Córdoba", from, nil)
	require.NoError(t, err)

	prof := &model.Professional{
		ID:           uuid.New(),
		Name:         "Dra. Paz",
		Active:       true,
		Verified:     true,
		Location:     model.Location{Province: "Córdoba"},
		Availability: []model.AvailabilityWindow{window},
		Credentials:  []model.Credential{cred},
	}

	bus := event.NewBus(nil, nil)
	observed := &recorder{}
	bus.SubscribeAll("test", observed)

	store := newMemoryStore()
	if policy.Timezone == "" {
		policy.Timezone = "UTC"
	}
	svc := NewService(Dependencies{
		Store:     store,
		Directory: staticDirectory{prof.ID: prof},
		Ownership: selfOnly,
		Events:    bus,
		Locker:    lock.NewLocalLocker(),
		Metrics:   metrics.NewTestMetrics(),
	}, policy).WithClock(func() time.Time { return testNow })

	return &fixture{svc: svc, store: store, observed: observed, professional: prof, patient: uuid.New()}
}

func (f *fixture) asPatient() context.Context {
	return auth.WithRequester(context.Background(), &auth.Requester{ID: f.patient, Role: auth.RolePatient})
}

func (f *fixture) asProfessional() context.Context {
	return auth.WithRequester(context.Background(), &auth.Requester{ID: f.professional.ID, Role: auth.RoleProfessional})
}

func (f *fixture) request(t *testing.T, date, start, end string) BookRequest {
	t.Helper()
	d, err := model.ParseDate(date)
	require.NoError(t, err)
	return BookRequest{
		PatientID:      f.patient,
		ProfessionalID: f.professional.ID,
		Date:           d,
		Start:          model.MustTimeOfDay(start),
		End:            model.MustTimeOfDay(end),
		Location:       model.Location{Province: "Córdoba", District: "Capital", Street: "Belgrano", StreetNumber: "100"},
		Reason:         "control",
	}
}

func TestBook_LifecycleScenario(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})
	req := require.New(t)

	appt, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
	req.NoError(err)
	req.Equal(model.AppointmentStatusPending, appt.Status())
	req.Equal([]event.Type{event.AppointmentCreated}, f.observed.types())

	appt, err = f.svc.Confirm(f.asProfessional(), appt.ID())
	req.NoError(err)
	req.Equal(model.AppointmentStatusConfirmed, appt.Status())
	req.Equal([]event.Type{event.AppointmentCreated, event.AppointmentConfirmed}, f.observed.types())

	newDate, _ := model.ParseDate("2025-11-16")
	appt, err = f.svc.Reschedule(f.asPatient(), appt.ID(), RescheduleRequest{
		Date:  newDate,
		Start: model.MustTimeOfDay("09:00"),
		End:   model.MustTimeOfDay("10:00"),
	})
	req.NoError(err)
	req.Equal(model.AppointmentStatusRescheduled, appt.Status())
	last := f.observed.events[len(f.observed.events)-1]
	req.Equal(event.AppointmentRescheduled, last.Type)
	req.Equal("2025-11-15 10:00-11:00", last.Fields()["old_range"])
	req.Equal("2025-11-16 09:00-10:00", last.Fields()["new_range"])

	appt, err = f.svc.Complete(f.asProfessional(), appt.ID(), "done")
	req.NoError(err)
	req.Equal(model.AppointmentStatusCompleted, appt.Status())
	req.Contains(appt.Notes(), "done")

	_, err = f.svc.Cancel(f.asPatient(), appt.ID(), "too late")
	req.True(apperrors.HasCode(err, apperrors.ErrInvalidTransition), "got %v", err)

	stored, err := f.store.Get(context.Background(), appt.ID())
	req.NoError(err)
	req.Equal(model.AppointmentStatusCompleted, stored.Status())
	req.Len(f.observed.events, 4, "failed cancel publishes nothing")
}

func TestBook_RejectsOverlapButAllowsTouching(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})

	_, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
	require.NoError(t, err)

	_, err = f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:30", "11:30"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict), "got %v", err)

	_, err = f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "11:00", "12:00"))
	assert.NoError(t, err)
}

func TestBook_CancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})

	first, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.asPatient(), first.ID(), "sick")
	require.NoError(t, err)

	_, err = f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
	assert.NoError(t, err)
}

func TestBook_Policies(t *testing.T) {
	t.Run("past date", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		_, err := f.svc.Book(f.asPatient(), f.request(t, "2025-10-31", "10:00", "11:00"))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation), "got %v", err)
	})

	t.Run("earlier today", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		_, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-01", "08:00", "09:00"))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation), "got %v", err)
	})

	t.Run("not bookable", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		f.professional.Verified = false
		_, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation), "got %v", err)
	})

	t.Run("unknown professional", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		req := f.request(t, "2025-11-15", "10:00", "11:00")
		req.ProfessionalID = uuid.New()
		_, err := f.svc.Book(f.asPatient(), req)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound), "got %v", err)
	})

	t.Run("someone else's patient", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		req := f.request(t, "2025-11-15", "10:00", "11:00")
		req.PatientID = uuid.New()
		_, err := f.svc.Book(f.asPatient(), req)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden), "got %v", err)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		_, err := f.svc.Book(context.Background(), f.request(t, "2025-11-15", "10:00", "11:00"))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized), "got %v", err)
	})

	t.Run("outside availability when enforced", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{EnforceAvailability: true})
		// 2025-11-17 is a Monday.
		_, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-17", "10:00", "11:00"))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation), "got %v", err)

		_, err = f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
		assert.NoError(t, err)
	})

	t.Run("credential province when enforced", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{EnforceCredentials: true})
		req := f.request(t, "2025-11-15", "10:00", "11:00")
		req.Location.Province = "Mendoza"
		_, err := f.svc.Book(f.asPatient(), req)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation), "got %v", err)
	})

	t.Run("duration", func(t *testing.T) {
		f := newFixture(t, config.BookingConfig{})
		_, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "10:15"))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation), "got %v", err)
		assert.Empty(t, f.observed.types())
	})
}

func TestBook_LockHeldIsConflict(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})
	req := f.request(t, "2025-11-15", "10:00", "11:00")

	var inner error
	err := f.svc.locker.WithSlotLock(context.Background(), req.ProfessionalID, req.Date, func(context.Context) error {
		_, inner = f.svc.Book(f.asPatient(), req)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, apperrors.HasCode(inner, apperrors.ErrConflict), "got %v", inner)
}

func TestReschedule_ExcludesItselfButNotOthers(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})
	ctx := f.asPatient()

	a, err := f.svc.Book(ctx, f.request(t, "2025-11-15", "10:00", "11:00"))
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, f.request(t, "2025-11-15", "12:00", "13:00"))
	require.NoError(t, err)

	day, _ := model.ParseDate("2025-11-15")
	moved, err := f.svc.Reschedule(ctx, a.ID(), RescheduleRequest{Date: day, Start: model.MustTimeOfDay("10:30"), End: model.MustTimeOfDay("11:30")})
	require.NoError(t, err, "overlapping its own old slot is fine")
	assert.Equal(t, "10:30", moved.Start().String())

	_, err = f.svc.Reschedule(ctx, a.ID(), RescheduleRequest{Date: day, Start: model.MustTimeOfDay("11:30"), End: model.MustTimeOfDay("12:30")})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict), "got %v", err)

	stored, err := f.store.Get(context.Background(), a.ID())
	require.NoError(t, err)
	assert.Equal(t, "10:30", stored.Start().String(), "rejected reschedule left storage untouched")
}

func TestTransitions_Authorization(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})
	a, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
	require.NoError(t, err)

	_, err = f.svc.Confirm(f.asPatient(), a.ID())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden), "patients cannot confirm")

	stranger := auth.WithRequester(context.Background(), &auth.Requester{ID: uuid.New(), Role: auth.RoleProfessional})
	_, err = f.svc.Get(stranger, a.ID())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	admin := auth.WithRequester(context.Background(), &auth.Requester{ID: uuid.New(), Role: auth.RoleAdmin})
	_, err = f.svc.Confirm(admin, a.ID())
	assert.NoError(t, err)

	_, err = f.svc.Get(f.asPatient(), uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestCancel_CarriesActor(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})
	a, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.asProfessional(), a.ID(), "emergency")
	require.NoError(t, err)

	last := f.observed.events[len(f.observed.events)-1]
	assert.Equal(t, "professional:"+f.professional.ID.String(), last.Fields()["actor"])
	assert.Equal(t, "pending", last.Fields()["previous_status"])
}

func TestAddNote_PersistsWithoutEvent(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})
	a, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
	require.NoError(t, err)

	_, err = f.svc.AddNote(f.asPatient(), a.ID(), "doorbell broken")
	require.NoError(t, err)

	stored, err := f.store.Get(context.Background(), a.ID())
	require.NoError(t, err)
	assert.Contains(t, stored.Notes(), "doorbell broken")
	assert.Equal(t, model.AppointmentStatusPending, stored.Status())
	assert.Equal(t, []event.Type{event.AppointmentCreated}, f.observed.types())
}

func TestListForProfessional(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})
	_, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
	require.NoError(t, err)
	_, err = f.svc.Book(f.asPatient(), f.request(t, "2025-11-22", "10:00", "11:00"))
	require.NoError(t, err)

	from, _ := model.ParseDate("2025-11-10")
	to, _ := model.ParseDate("2025-11-16")

	list, err := f.svc.ListForProfessional(f.asProfessional(), f.professional.ID, from, to)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.ListForProfessional(f.asPatient(), f.professional.ID, from, to)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = f.svc.ListForProfessional(f.asProfessional(), f.professional.ID, to, from)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
}

func TestList_ScopedToRequester(t *testing.T) {
	f := newFixture(t, config.BookingConfig{})
	first, err := f.svc.Book(f.asPatient(), f.request(t, "2025-11-15", "10:00", "11:00"))
	require.NoError(t, err)
	_, err = f.svc.Book(f.asPatient(), f.request(t, "2025-11-16", "10:00", "11:00"))
	require.NoError(t, err)
	_, err = f.svc.Confirm(f.asProfessional(), first.ID())
	require.NoError(t, err)

	list, err := f.svc.List(f.asPatient(), model.AppointmentFilters{PatientID: f.patient})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svc.List(f.asProfessional(), model.AppointmentFilters{Status: model.AppointmentStatusConfirmed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID(), list[0].ID())

	other := auth.WithRequester(context.Background(), &auth.Requester{ID: uuid.New(), Role: auth.RoleProfessional})
	list, err = f.svc.List(other, model.AppointmentFilters{})
	require.NoError(t, err)
	assert.Empty(t, list, "a professional only sees their own visits")

	_, err = f.svc.List(other, model.AppointmentFilters{ProfessionalID: f.professional.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = f.svc.List(f.asPatient(), model.AppointmentFilters{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	_, err = f.svc.List(f.asPatient(), model.AppointmentFilters{PatientID: uuid.New()})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = f.svc.List(f.asProfessional(), model.AppointmentFilters{Status: "archived"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	_, err = f.svc.List(context.Background(), model.AppointmentFilters{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))
}
