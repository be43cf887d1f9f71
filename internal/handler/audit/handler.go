package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/homevisit-api/internal/handler"
	"github.com/jwalitptl/homevisit-api/internal/model"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

type HistoryService interface {
	History(ctx context.Context, appointmentID uuid.UUID, limit int) ([]*model.AuditLog, error)
}

type Handler struct {
	service HistoryService
}

func NewHandler(service HistoryService) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes expects r to be restricted to admins already.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/appointments/:id/history", h.GetAppointmentHistory)
}

func (h *Handler) GetAppointmentHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			_ = c.Error(apperrors.BadRequest("invalid limit", err))
			return
		}
	}

	logs, err := h.service.History(c.Request.Context(), id, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}
