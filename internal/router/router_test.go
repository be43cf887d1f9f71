package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/homevisit-api/internal/handler"
	appointmenthandler "github.com/jwalitptl/homevisit-api/internal/handler/appointment"
	audithandler "github.com/jwalitptl/homevisit-api/internal/handler/audit"
	professionalhandler "github.com/jwalitptl/homevisit-api/internal/handler/professional"
	"github.com/jwalitptl/homevisit-api/internal/middleware"
	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/service/appointment"
	"github.com/jwalitptl/homevisit-api/internal/service/search"
	"github.com/jwalitptl/homevisit-api/pkg/auth"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

type mockAppointments struct{ mock.Mock }

func (m *mockAppointments) result(args mock.Arguments) (*model.Appointment, error) {
	a, _ := args.Get(0).(*model.Appointment)
	return a, args.Error(1)
}

func (m *mockAppointments) Book(ctx context.Context, req appointment.BookRequest) (*model.Appointment, error) {
	return m.result(m.Called(ctx, req))
}

func (m *mockAppointments) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return m.result(m.Called(ctx, id))
}

func (m *mockAppointments) Confirm(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return m.result(m.Called(ctx, id))
}

func (m *mockAppointments) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	return m.result(m.Called(ctx, id, reason))
}

func (m *mockAppointments) Complete(ctx context.Context, id uuid.UUID, notes string) (*model.Appointment, error) {
	return m.result(m.Called(ctx, id, notes))
}

func (m *mockAppointments) Reschedule(ctx context.Context, id uuid.UUID, req appointment.RescheduleRequest) (*model.Appointment, error) {
	return m.result(m.Called(ctx, id, req))
}

func (m *mockAppointments) AddNote(ctx context.Context, id uuid.UUID, text string) (*model.Appointment, error) {
	return m.result(m.Called(ctx, id, text))
}

func (m *mockAppointments) ListForProfessional(ctx context.Context, id uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	args := m.Called(ctx, id, from, to)
	list, _ := args.Get(0).([]*model.Appointment)
	return list, args.Error(1)
}

func (m *mockAppointments) List(ctx context.Context, f model.AppointmentFilters) ([]*model.Appointment, error) {
	args := m.Called(ctx, f)
	list, _ := args.Get(0).([]*model.Appointment)
	return list, args.Error(1)
}

type searcherFunc func(f search.Filter) ([]*model.Professional, error)

func (s searcherFunc) Find(_ context.Context, f search.Filter) ([]*model.Professional, error) {
	return s(f)
}

type historyFunc func(id uuid.UUID) ([]*model.AuditLog, error)

func (h historyFunc) History(_ context.Context, id uuid.UUID, _ int) ([]*model.AuditLog, error) {
	return h(id)
}

// tokens maps bearer tokens straight to requesters.
type tokens map[string]*auth.Requester

func (t tokens) Validate(token string) (*auth.Requester, error) {
	r, ok := t[token]
	if !ok {
		return nil, errors.New("token is malformed")
	}
	return r, nil
}

var (
	patient = &auth.Requester{ID: uuid.New(), Role: auth.RolePatient}
	admin   = &auth.Requester{ID: uuid.New(), Role: auth.RoleAdmin}
)

type testServer struct {
	engine       *gin.Engine
	appointments *mockAppointments
	searched     []search.Filter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{appointments: new(mockAppointments)}
	reg := prometheus.NewRegistry()

	r := NewRouter(
		middleware.NewAuthMiddleware(tokens{"patient-token": patient, "admin-token": admin}),
		appointmenthandler.NewHandler(ts.appointments),
		professionalhandler.NewHandler(searcherFunc(func(f search.Filter) ([]*model.Professional, error) {
			ts.searched = append(ts.searched, f)
			if f.District != "" && f.Province == "" {
				return nil, apperrors.Validation("district filter requires a province")
			}
			return []*model.Professional{{ID: uuid.New(), Name: "Lic. Gómez", Location: model.Location{Province: "Córdoba"}}}, nil
		})),
		audithandler.NewHandler(historyFunc(func(id uuid.UUID) ([]*model.AuditLog, error) {
			return []*model.AuditLog{{ID: uuid.New(), Action: "appointment.created", EntityID: id}}, nil
		})),
		handler.NewHandler(nil, reg),
		RouterConfig{Mode: gin.TestMode, CORSConfig: middleware.DefaultCORSConfig(), Registerer: reg},
	)
	r.Setup()
	ts.engine = r.Engine()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, handler.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var resp handler.Response
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func sampleAppointment(t *testing.T) *model.Appointment {
	t.Helper()
	d, err := model.ParseDate("2025-11-15")
	require.NoError(t, err)
	a, err := model.NewAppointment(model.NewAppointmentParams{
		PatientID:      patient.ID,
		ProfessionalID: uuid.New(),
		Date:           d,
		Start:          model.MustTimeOfDay("10:00"),
		End:            model.MustTimeOfDay("11:00"),
		Location:       model.Location{Province: "Córdoba"},
	}, time.Now())
	require.NoError(t, err)
	return a
}

func bookBody(professionalID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"patient_id":      patient.ID,
		"professional_id": professionalID,
		"date":            "2025-11-15",
		"start_time":      "10:00",
		"end_time":        "11:00",
		"location":        map[string]string{"province": "Córdoba", "district": "Capital"},
		"reason":          "control",
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderXRequestID))

	rec, _ = ts.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "homevisit_http_requests_total")
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", resp.Status)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBook(t *testing.T) {
	ts := newTestServer(t)
	appt := sampleAppointment(t)
	professionalID := appt.ProfessionalID()

	ts.appointments.On("Book", mock.Anything, mock.MatchedBy(func(req appointment.BookRequest) bool {
		return req.ProfessionalID == professionalID &&
			req.Start == model.MustTimeOfDay("10:00") &&
			req.Date.Format(time.DateOnly) == "2025-11-15" &&
			req.Location.District == "Capital"
	})).Return(appt, nil).Once()

	rec, resp := ts.do(t, http.MethodPost, "/api/v1/appointments", "patient-token", bookBody(professionalID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "10:00", data["start_time"])
	assert.Equal(t, "2025-11-15", data["date"])
	ts.appointments.AssertExpectations(t)
}

func TestBook_RequestValidation(t *testing.T) {
	ts := newTestServer(t)

	body := bookBody(uuid.New())
	body["start_time"] = "25:00"
	rec, resp := ts.do(t, http.MethodPost, "/api/v1/appointments", "patient-token", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := resp.Data.([]interface{})
	require.Len(t, fields, 1)
	assert.Equal(t, map[string]interface{}{"field": "start_time", "rule": "hhmm"}, fields[0])

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/appointments", "patient-token", `{"date": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.appointments.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
}

func TestErrorCodesMapToStatus(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.Conflict("slot taken"), http.StatusConflict, "conflict"},
		{apperrors.InvalidTransition("confirm", "completed"), http.StatusConflict, "invalid_transition"},
		{apperrors.Forbidden("not yours"), http.StatusForbidden, "forbidden"},
		{apperrors.NotFound("appointment", nil), http.StatusNotFound, "not_found"},
		{apperrors.Validation("in the past"), http.StatusBadRequest, "validation"},
	} {
		t.Run(tc.code, func(t *testing.T) {
			ts := newTestServer(t)
			id := uuid.New()
			ts.appointments.On("Confirm", mock.Anything, id).Return(nil, tc.err)

			rec, resp := ts.do(t, http.MethodPost, "/api/v1/appointments/"+id.String()+"/confirm", "patient-token", nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tc.code, resp.Data.(map[string]interface{})["code"])
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.New()
	ts.appointments.On("Get", mock.Anything, id).Return(nil, errors.New("pq: password authentication failed"))

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/appointments/"+id.String(), "patient-token", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", resp.Message)
}

func TestTransitionsBindBodies(t *testing.T) {
	ts := newTestServer(t)
	appt := sampleAppointment(t)
	id := appt.ID()

	ts.appointments.On("Cancel", mock.Anything, id, "").Return(appt, nil).Once()
	ts.appointments.On("Complete", mock.Anything, id, "all good").Return(appt, nil).Once()
	ts.appointments.On("AddNote", mock.Anything, id, "ring twice").Return(appt, nil).Once()
	ts.appointments.On("Reschedule", mock.Anything, id, mock.MatchedBy(func(req appointment.RescheduleRequest) bool {
		return req.Date.Format(time.DateOnly) == "2025-11-16" && req.End == model.MustTimeOfDay("10:00")
	})).Return(appt, nil).Once()

	base := "/api/v1/appointments/" + id.String()
	rec, _ := ts.do(t, http.MethodPost, base+"/cancel", "patient-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, base+"/complete", "patient-token", map[string]string{"notes": "all good"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, base+"/notes", "patient-token", map[string]string{"text": "ring twice"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodPost, base+"/reschedule", "patient-token",
		map[string]string{"date": "2025-11-16", "start_time": "09:00", "end_time": "10:00"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, base+"/notes", "patient-token", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "note text is required")
	rec, _ = ts.do(t, http.MethodPost, "/api/v1/appointments/not-a-uuid/confirm", "patient-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.appointments.AssertExpectations(t)
}

func TestListForProfessional(t *testing.T) {
	ts := newTestServer(t)
	profID := uuid.New()
	from, _ := model.ParseDate("2025-11-10")
	to, _ := model.ParseDate("2025-11-17")
	ts.appointments.On("ListForProfessional", mock.Anything, profID, from, to).
		Return([]*model.Appointment{sampleAppointment(t)}, nil)

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/professionals/"+profID.String()+"/appointments?from=2025-11-10", "patient-token", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, resp.Data, 1)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/professionals/"+profID.String()+"/appointments?from=11/10/2025", "patient-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAppointments(t *testing.T) {
	ts := newTestServer(t)
	from, _ := model.ParseDate("2025-11-01")
	ts.appointments.On("List", mock.Anything, model.AppointmentFilters{
		PatientID: patient.ID,
		Status:    model.AppointmentStatusPending,
		From:      from,
	}).Return([]*model.Appointment{sampleAppointment(t)}, nil).Once()

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/appointments?patient_id="+patient.ID.String()+"&status=pending&from=2025-11-01", "patient-token", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, resp.Data, 1)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/appointments?status=archived", "patient-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.appointments.AssertExpectations(t)
}

func TestProfessionalSearch(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/professionals/search?province=C%C3%B3rdoba&specialty_id=3&lat=-31.4&lon=-64.2", "patient-token", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, resp.Data, 1)
	require.Len(t, ts.searched, 1)
	assert.Equal(t, "Córdoba", ts.searched[0].Province)
	require.NotNil(t, ts.searched[0].SpecialtyID)
	assert.Equal(t, 3, *ts.searched[0].SpecialtyID)
	require.NotNil(t, ts.searched[0].Reference)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/professionals/search?district=Capital", "patient-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/professionals/search?province=x&lat=10", "patient-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/professionals/search?lat=95&lon=0", "patient-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentHistoryIsAdminOnly(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/v1/appointments/" + uuid.NewString() + "/history"

	rec, _ := ts.do(t, http.MethodGet, path, "patient-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := ts.do(t, http.MethodGet, path, "admin-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
