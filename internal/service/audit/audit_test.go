package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/pkg/auth"
	"github.com/jwalitptl/homevisit-api/pkg/event"
)

type mockAuditRepository struct{ mock.Mock }

func (m *mockAuditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *mockAuditRepository) List(ctx context.Context, f model.AuditLogFilters) ([]*model.AuditLog, error) {
	args := m.Called(ctx, f)
	logs, _ := args.Get(0).([]*model.AuditLog)
	return logs, args.Error(1)
}

func (m *mockAuditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func TestAuditLogger_WritesEntryPerEvent(t *testing.T) {
	repo := new(mockAuditRepository)
	var got *model.AuditLog
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.AuditLog")).
		Run(func(args mock.Arguments) { got = args.Get(1).(*model.AuditLog) }).
		Return(nil)

	requester := &auth.Requester{ID: uuid.New(), Role: auth.RolePatient}
	ctx := auth.WithRequester(context.Background(), requester)
	at := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	evt := event.New(uuid.New(), uuid.New(), uuid.New(), at, event.Cancelled{
		Reason: "flu", Actor: requester.Actor(), PreviousStatus: "confirmed",
	})

	require.NoError(t, NewAuditLogger(repo).Handle(ctx, evt))

	require.NotNil(t, got)
	assert.Equal(t, "appointment.cancelled", got.Action)
	assert.Equal(t, model.AuditEntityAppointment, got.EntityType)
	assert.Equal(t, evt.AppointmentID, got.EntityID)
	assert.Equal(t, at, got.OccurredAt)
	require.NotNil(t, got.ActorID)
	assert.Equal(t, requester.ID, *got.ActorID)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	assert.Equal(t, "flu", meta["reason"])
	assert.Equal(t, "confirmed", meta["previous_status"])
}

func TestAuditLogger_SystemActorAndRepoFailure(t *testing.T) {
	repo := new(mockAuditRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(l *model.AuditLog) bool {
		return l.ActorID == nil && string(l.Metadata) == "{}"
	})).Return(errors.New("connection refused"))

	evt := event.New(uuid.New(), uuid.New(), uuid.New(), time.Now(), event.Confirmed{})
	err := NewAuditLogger(repo).Handle(context.Background(), evt)

	assert.EqualError(t, err, "connection refused")
	repo.AssertExpectations(t)
}

func TestService_HistoryClampsLimit(t *testing.T) {
	repo := new(mockAuditRepository)
	id := uuid.New()
	repo.On("List", mock.Anything, model.AuditLogFilters{
		EntityType: model.AuditEntityAppointment,
		EntityID:   id,
		Limit:      defaultHistoryLimit,
	}).Return([]*model.AuditLog{{ID: uuid.New()}}, nil)

	logs, err := NewService(repo).History(context.Background(), id, 5000)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
