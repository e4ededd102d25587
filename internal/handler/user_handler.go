package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedulrr/schedulrr-api/internal/service"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
	"github.com/schedulrr/schedulrr-api/pkg/response"
)

// UserHandler wires user services to HTTP routes.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler constructs a new UserHandler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me godoc
// @Summary Current account
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *UserHandler) Me(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	user, err := h.users.Me(c.Request.Context(), clerkUserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateUsername godoc
// @Summary Change public username
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.UpdateUsernameRequest true "Username payload"
// @Success 200 {object} response.Envelope
// @Router /me/username [patch]
func (h *UserHandler) UpdateUsername(c *gin.Context) {
	clerkUserID, ok := currentClerkUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid username payload"))
		return
	}
	user, err := h.users.UpdateUsername(c.Request.Context(), clerkUserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// PublicProfile godoc
// @Summary Public booking page data
// @Tags Users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} response.Envelope
// @Router /users/{username} [get]
func (h *UserHandler) PublicProfile(c *gin.Context) {
	profile, err := h.users.PublicProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
