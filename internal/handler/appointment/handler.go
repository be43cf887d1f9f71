package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/homevisit-api/internal/handler"
	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

// defaultAgendaDays is the agenda span when "to" is omitted.
const defaultAgendaDays = 7

// Service is the booking workflow as the handler sees it.
type Service interface {
	Book(ctx context.Context, req appointment.BookRequest) (*model.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID, notes string) (*model.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, req appointment.RescheduleRequest) (*model.Appointment, error)
	AddNote(ctx context.Context, id uuid.UUID, text string) (*model.Appointment, error)
	ListForProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
	List(ctx context.Context, f model.AppointmentFilters) ([]*model.Appointment, error)
}

type Handler struct {
	service Service
	now     func() time.Time
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.Book)
		appointments.GET("", h.List)
		appointments.GET("/:id", h.Get)
		appointments.POST("/:id/confirm", h.Confirm)
		appointments.POST("/:id/cancel", h.Cancel)
		appointments.POST("/:id/complete", h.Complete)
		appointments.POST("/:id/reschedule", h.Reschedule)
		appointments.POST("/:id/notes", h.AddNote)
	}
	r.GET("/professionals/:id/appointments", h.ListForProfessional)
}

func (h *Handler) Book(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(handler.BindError(err))
		return
	}
	date, start, end, err := parseSlot(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		_ = c.Error(err)
		return
	}

	appt, err := h.service.Book(c.Request.Context(), appointment.BookRequest{
		PatientID:      req.PatientID,
		ProfessionalID: req.ProfessionalID,
		Date:           date,
		Start:          start,
		End:            end,
		Location:       req.Location,
		Reason:         req.Reason,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(toResponse(appt)))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	appt, err := h.service.Get(c.Request.Context(), id)
	h.respond(c, appt, err)
}

func (h *Handler) Confirm(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	appt, err := h.service.Confirm(c.Request.Context(), id)
	h.respond(c, appt, err)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	var req CancelRequest
	if !bindOptional(c, &req) {
		return
	}
	appt, err := h.service.Cancel(c.Request.Context(), id, req.Reason)
	h.respond(c, appt, err)
}

func (h *Handler) Complete(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	var req CompleteRequest
	if !bindOptional(c, &req) {
		return
	}
	appt, err := h.service.Complete(c.Request.Context(), id, req.Notes)
	h.respond(c, appt, err)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(handler.BindError(err))
		return
	}
	date, start, end, err := parseSlot(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		_ = c.Error(err)
		return
	}
	appt, err := h.service.Reschedule(c.Request.Context(), id, appointment.RescheduleRequest{
		Date:  date,
		Start: start,
		End:   end,
	})
	h.respond(c, appt, err)
}

func (h *Handler) AddNote(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(handler.BindError(err))
		return
	}
	appt, err := h.service.AddNote(c.Request.Context(), id, req.Text)
	h.respond(c, appt, err)
}

// ListForProfessional serves ?from=YYYY-MM-DD&to=YYYY-MM-DD. from defaults
// to today and to to a week after from.
func (h *Handler) ListForProfessional(c *gin.Context) {
	professionalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperrors.BadRequest("invalid professional ID", err))
		return
	}

	from := model.DateOnly(h.now().UTC())
	if v := c.Query("from"); v != "" {
		if from, err = model.ParseDate(v); err != nil {
			_ = c.Error(err)
			return
		}
	}
	to := from.AddDate(0, 0, defaultAgendaDays)
	if v := c.Query("to"); v != "" {
		if to, err = model.ParseDate(v); err != nil {
			_ = c.Error(err)
			return
		}
	}

	list, err := h.service.ListForProfessional(c.Request.Context(), professionalID, from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(toResponses(list)))
}

func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(handler.BindError(err))
		return
	}

	f := model.AppointmentFilters{Status: model.AppointmentStatus(q.Status)}
	var err error
	if q.PatientID != "" {
		if f.PatientID, err = uuid.Parse(q.PatientID); err != nil {
			_ = c.Error(apperrors.BadRequest("invalid patient ID", err))
			return
		}
	}
	if q.ProfessionalID != "" {
		if f.ProfessionalID, err = uuid.Parse(q.ProfessionalID); err != nil {
			_ = c.Error(apperrors.BadRequest("invalid professional ID", err))
			return
		}
	}
	if q.From != "" {
		if f.From, err = model.ParseDate(q.From); err != nil {
			_ = c.Error(err)
			return
		}
	}
	if q.To != "" {
		if f.To, err = model.ParseDate(q.To); err != nil {
			_ = c.Error(err)
			return
		}
	}

	list, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(toResponses(list)))
}

func (h *Handler) respond(c *gin.Context, appt *model.Appointment, err error) {
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(toResponse(appt)))
}

func appointmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperrors.BadRequest("invalid appointment ID", err))
		return uuid.Nil, false
	}
	return id, true
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(handler.BindError(err))
		return false
	}
	return true
}

func parseSlot(date, start, end string) (time.Time, model.TimeOfDay, model.TimeOfDay, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return time.Time{}, model.TimeOfDay{}, model.TimeOfDay{}, err
	}
	s, err := model.ParseTimeOfDay(start)
	if err != nil {
		return time.Time{}, model.TimeOfDay{}, model.TimeOfDay{}, err
	}
	e, err := model.ParseTimeOfDay(end)
	if err != nil {
		return time.Time{}, model.TimeOfDay{}, model.TimeOfDay{}, err
	}
	return d, s, e, nil
}
