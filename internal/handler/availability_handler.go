package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedulrr/schedulrr-api/internal/service"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
	"github.com/schedulrr/schedulrr-api/pkg/response"
)

// AvailabilityHandler wires availability services to HTTP routes.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs a new AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// Get godoc
// @Summary Get weekly availability
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	availability, err := h.availability.Get(c.Request.Context(), clerkUserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}

// Update godoc
// @Summary Replace weekly availability
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.UpdateAvailabilityRequest true "Availability payload"
// @Success 200 {object} response.Envelope
// @Router /availability [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	availability, err := h.availability.Update(c.Request.Context(), clerkUserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}

// Slots godoc
// @Summary Open slots for a public event
// @Tags Availability
// @Produce json
// @Param username path string true "Owner username"
// @Param eventID path string true "Event ID"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /users/{username}/events/{eventID}/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	slots, err := h.availability.EventSlots(c.Request.Context(),
		c.Param("username"), c.Param("eventID"), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
