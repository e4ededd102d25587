package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/internal/middleware"
	"github.com/schedulrr/schedulrr-api/internal/models"
	"github.com/schedulrr/schedulrr-api/internal/service"
)

func sessionClaims(clerkUserID string) *models.JWTClaims {
	return &models.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: clerkUserID},
	}
}

func TestUserHandlerMeRequiresSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := service.NewUserService(&webhookUserRepoMock{}, &webhookEventRepoMock{}, nil, nil, zap.NewNop())
	handler := NewUserHandler(users)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/me", nil)
	c.Request = req

	handler.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &webhookUserRepoMock{upserted: []models.User{{
		ID:          "user-1",
		ClerkUserID: "clerk-1",
		Email:       "olivia@example.com",
		Name:        "Olivia Owner",
		Username:    "olivia",
	}}}
	users := service.NewUserService(repo, &webhookEventRepoMock{}, nil, nil, zap.NewNop())
	handler := NewUserHandler(users)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/me", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, sessionClaims("clerk-1"))

	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"olivia"`)
}

func TestUserHandlerUpdateUsernameInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := service.NewUserService(&webhookUserRepoMock{}, &webhookEventRepoMock{}, nil, nil, zap.NewNop())
	handler := NewUserHandler(users)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/me/username", bytes.NewBufferString(`{"username":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, sessionClaims("clerk-1"))

	handler.UpdateUsername(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandlerPublicProfileNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := service.NewUserService(&webhookUserRepoMock{}, &webhookEventRepoMock{}, nil, nil, zap.NewNop())
	handler := NewUserHandler(users)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/users/nobody", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "username", Value: "nobody"}}

	handler.PublicProfile(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
