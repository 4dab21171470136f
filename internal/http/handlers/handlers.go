package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
	"github.com/AmitRK9819/pulsegov/internal/cache"
	"github.com/AmitRK9819/pulsegov/internal/graph"
	"github.com/AmitRK9819/pulsegov/internal/intelligence"
	"github.com/AmitRK9819/pulsegov/internal/sla"
)

type SLAStatus interface {
	Status(ctx context.Context, complaintID int64) (sla.StatusReport, error)
}

type SLASweeper interface {
	Run(ctx context.Context) (sla.SweepReport, error)
}

type DeadlineIndex interface {
	DueBefore(ctx context.Context, t time.Time, limit int64) ([]cache.Deadline, error)
}

type Intelligence interface {
	Suggestions(ctx context.Context, complaintID int64) (intelligence.Suggestion, error)
	Network(ctx context.Context, categoryID int64) (graph.Network, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves whichever services the running process hosts. Nil services
// are simply not routed.
type Handler struct {
	SLA          SLAStatus
	Sweeper      SLASweeper
	Deadlines    DeadlineIndex
	Intelligence Intelligence
	Checks       map[string]Pinger
	Logger       zerolog.Logger
	Now          func() time.Time

	// SweepTimeout bounds a manual sweep, which outlives its request.
	SweepTimeout time.Duration
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) sweepTimeout() time.Duration {
	if h.SweepTimeout > 0 {
		return h.SweepTimeout
	}
	return 5 * time.Minute
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, p := range h.Checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeError(c, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE", "Dependency unavailable", failed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// writeServiceError maps a service error onto the error envelope.
func (h *Handler) writeServiceError(c *gin.Context, message string, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", message, err.Error())
	case apperr.KindNotFound:
		writeError(c, http.StatusNotFound, "NOT_FOUND", message, err.Error())
	case apperr.KindConflict:
		writeError(c, http.StatusConflict, "CONFLICT", message, err.Error())
	default:
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(c, http.StatusGatewayTimeout, "TIMEOUT", message, err.Error())
			return
		}
		writeError(c, http.StatusServiceUnavailable, "UNAVAILABLE", message, err.Error())
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a positive integer", c.Param(name))
		return 0, false
	}
	return id, true
}
