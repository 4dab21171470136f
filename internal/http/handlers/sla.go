package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmitRK9819/pulsegov/internal/sla"
)

const maxActiveItems = 500

// @Summary SLA status
// @Description Utilization and breach prediction, recomputed on every call
// @Tags sla
// @Produce json
// @Param complaintId path int true "Complaint ID"
// @Success 200 {object} sla.StatusReport
// @Router /api/sla/{complaintId} [get]
func (h *Handler) SLAStatus(c *gin.Context) {
	id, ok := paramID(c, "complaintId")
	if !ok {
		return
	}
	report, err := h.SLA.Status(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, "Failed to compute SLA status", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// @Summary Deadlines due soon
// @Tags sla
// @Produce json
// @Param within query string false "Look-ahead window, e.g. 24h"
// @Param limit query int false "Max items"
// @Success 200 {object} map[string]any
// @Router /api/sla/active [get]
func (h *Handler) SLAActive(c *gin.Context) {
	within, err := time.ParseDuration(c.DefaultQuery("within", "24h"))
	if err != nil || within < 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "within must be a non-negative duration", c.Query("within"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", c.Query("limit"))
		return
	}
	if limit > maxActiveItems {
		limit = maxActiveItems
	}

	items, err := h.Deadlines.DueBefore(c.Request.Context(), h.now().Add(within), int64(limit))
	if err != nil {
		h.writeServiceError(c, "Failed to list active deadlines", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "within": within.String(), "limit": limit})
}

// @Summary Run an SLA sweep now
// @Tags sla
// @Produce json
// @Success 200 {object} sla.SweepReport
// @Failure 409 {object} map[string]any
// @Router /api/sla/sweep [post]
func (h *Handler) SLASweep(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.sweepTimeout())
	defer cancel()
	report, err := h.Sweeper.Run(ctx)
	if errors.Is(err, sla.ErrSweepInFlight) {
		writeError(c, http.StatusConflict, "SWEEP_IN_FLIGHT", "A sweep is already running", nil)
		return
	}
	if err != nil {
		// Per-complaint failures still produce a report.
		h.Logger.Warn().Err(err).Int("failed", report.Failed).Msg("manual sweep finished with errors")
	}
	c.JSON(http.StatusOK, report)
}
