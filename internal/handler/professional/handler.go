package professional

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/homevisit-api/internal/handler"
	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/service/search"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

type Searcher interface {
	Find(ctx context.Context, f search.Filter) ([]*model.Professional, error)
}

type Handler struct {
	searcher Searcher
}

func NewHandler(searcher Searcher) *Handler {
	return &Handler{searcher: searcher}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/professionals/search", h.Search)
}

type SearchQuery struct {
	Province      string   `form:"province" binding:"max=100"`
	District      string   `form:"district" binding:"max=100"`
	Neighborhood  string   `form:"neighborhood" binding:"max=100"`
	SpecialtyID   *int     `form:"specialty_id" binding:"omitempty,min=1"`
	SpecialtyName string   `form:"specialty" binding:"max=100"`
	Latitude      *float64 `form:"lat" binding:"omitempty,min=-90,max=90"`
	Longitude     *float64 `form:"lon" binding:"omitempty,min=-180,max=180"`
}

type Result struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Location    model.Location    `json:"location"`
	Specialties []model.Specialty `json:"specialties"`
	Verified    bool              `json:"verified"`
	DistanceKm  *float64          `json:"distance_km,omitempty"`
}

func (h *Handler) Search(c *gin.Context) {
	var q SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(handler.BindError(err))
		return
	}
	if (q.Latitude == nil) != (q.Longitude == nil) {
		_ = c.Error(apperrors.Validation("lat and lon must be given together"))
		return
	}

	f := search.Filter{
		Province:      q.Province,
		District:      q.District,
		Neighborhood:  q.Neighborhood,
		SpecialtyID:   q.SpecialtyID,
		SpecialtyName: q.SpecialtyName,
	}
	if q.Latitude != nil {
		f.Reference = &model.Location{Latitude: q.Latitude, Longitude: q.Longitude}
	}

	found, err := h.searcher.Find(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}

	results := make([]Result, 0, len(found))
	for _, p := range found {
		r := Result{
			ID:          p.ID,
			Name:        p.Name,
			Location:    p.Location,
			Specialties: p.Specialties,
			Verified:    p.Verified,
		}
		if f.Reference != nil {
			if km, ok := f.Reference.DistanceKm(p.Location); ok {
				r.DistanceKm = &km
			}
		}
		results = append(results, r)
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(results))
}
