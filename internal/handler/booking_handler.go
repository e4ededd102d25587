package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedulrr/schedulrr-api/internal/service"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
	"github.com/schedulrr/schedulrr-api/pkg/response"
)

// BookingHandler wires the visitor booking flow to HTTP routes.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler constructs a new BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Create godoc
// @Summary Book a slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	booking, err := h.bookings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}
