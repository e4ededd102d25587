package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedulrr/schedulrr-api/internal/models"
	"github.com/schedulrr/schedulrr-api/internal/service"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
	"github.com/schedulrr/schedulrr-api/pkg/response"
)

// MeetingHandler wires meeting services to HTTP routes.
type MeetingHandler struct {
	meetings *service.MeetingService
}

// NewMeetingHandler constructs a new MeetingHandler.
func NewMeetingHandler(meetings *service.MeetingService) *MeetingHandler {
	return &MeetingHandler{meetings: meetings}
}

// List godoc
// @Summary List own meetings
// @Tags Meetings
// @Produce json
// @Security BearerAuth
// @Param type query string false "Meeting type (upcoming/past)"
// @Success 200 {object} response.Envelope
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	meetings, err := h.meetings.List(c.Request.Context(), clerkUserID, meetingType(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, nil)
}

// Cancel godoc
// @Summary Cancel a meeting
// @Tags Meetings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Meeting ID"
// @Success 204 "No Content"
// @Router /meetings/{id} [delete]
func (h *MeetingHandler) Cancel(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.meetings.Cancel(c.Request.Context(), clerkUserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export meetings as CSV or PDF
// @Tags Meetings
// @Produce octet-stream
// @Security BearerAuth
// @Param type query string false "Meeting type (upcoming/past)"
// @Param format query string false "Export format (csv/pdf)"
// @Success 200 {file} binary
// @Router /meetings/export [get]
func (h *MeetingHandler) Export(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.meetings.Export(c.Request.Context(), clerkUserID, meetingType(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func meetingType(c *gin.Context) models.MeetingType {
	if c.Query("type") == string(models.MeetingPast) {
		return models.MeetingPast
	}
	return models.MeetingUpcoming
}
