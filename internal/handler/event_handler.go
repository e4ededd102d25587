package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedulrr/schedulrr-api/internal/service"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
	"github.com/schedulrr/schedulrr-api/pkg/response"
)

// EventHandler wires event services to HTTP routes.
type EventHandler struct {
	events *service.EventService
}

// NewEventHandler constructs a new EventHandler.
func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// Create godoc
// @Summary Create event type
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	event, err := h.events.Create(c.Request.Context(), clerkUserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// List godoc
// @Summary List own event types
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	events, err := h.events.List(c.Request.Context(), clerkUserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Get godoc
// @Summary Get own event type
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	event, err := h.events.Get(c.Request.Context(), clerkUserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete event type
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 204 "No Content"
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.events.Delete(c.Request.Context(), clerkUserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Public godoc
// @Summary Public event detail
// @Tags Events
// @Produce json
// @Param username path string true "Owner username"
// @Param eventID path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /users/{username}/events/{eventID} [get]
func (h *EventHandler) Public(c *gin.Context) {
	event, err := h.events.PublicEvent(c.Request.Context(), c.Param("username"), c.Param("eventID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}
