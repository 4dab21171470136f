package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Resolution suggestions
// @Description Actions drawn from similar resolved complaints, or a generic bundle when none exist
// @Tags intelligence
// @Produce json
// @Param complaintId path int true "Complaint ID"
// @Success 200 {object} intelligence.Suggestion
// @Router /api/suggestions/{complaintId} [get]
func (h *Handler) Suggestions(c *gin.Context) {
	id, ok := paramID(c, "complaintId")
	if !ok {
		return
	}
	s, err := h.Intelligence.Suggestions(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, "Failed to build suggestions", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary Similarity network
// @Tags intelligence
// @Produce json
// @Param categoryId path int true "Category ID"
// @Success 200 {object} graph.Network
// @Router /api/network/{categoryId} [get]
func (h *Handler) Network(c *gin.Context) {
	id, ok := paramID(c, "categoryId")
	if !ok {
		return
	}
	n, err := h.Intelligence.Network(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, "Failed to load network", err)
		return
	}
	c.JSON(http.StatusOK, n)
}
