package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is anything the readiness probe can check, such as *sqlx.DB or a
// redis client adapter.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves the operational endpoints.
type Handler struct {
	deps     map[string]Pinger
	gatherer prometheus.Gatherer
}

// NewHandler creates a new handler instance. A nil gatherer serves the
// default prometheus registry.
func NewHandler(deps map[string]Pinger, gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{deps: deps, gatherer: gatherer}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{
		"status": "alive",
		"time":   time.Now().UTC(),
	}))
}

// ReadinessCheck pings every dependency and reports each one.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(gin.H, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = "down"
			continue
		}
		checks[name] = "up"
	}

	if status != http.StatusOK {
		resp := NewErrorResponse("not ready")
		resp.Data = checks
		c.JSON(status, resp)
		return
	}
	c.JSON(status, NewSuccessResponse(checks))
}

func (h *Handler) MetricsHandler(c *gin.Context) {
	promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}
