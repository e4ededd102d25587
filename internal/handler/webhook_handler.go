package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/internal/service"
	"github.com/schedulrr/schedulrr-api/pkg/config"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
	"github.com/schedulrr/schedulrr-api/pkg/response"
)

// WebhookHandler consumes identity-provider webhooks to keep local user
// rows in sync with Clerk accounts.
type WebhookHandler struct {
	users  *service.UserService
	secret string
	logger *zap.Logger
}

// NewWebhookHandler constructs a new WebhookHandler.
func NewWebhookHandler(users *service.UserService, cfg config.ClerkConfig, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{users: users, secret: cfg.WebhookSecret, logger: logger}
}

type clerkWebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		ImageURL       string `json:"image_url"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// HandleClerk godoc
// @Summary Clerk user webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /webhooks/clerk [post]
func (h *WebhookHandler) HandleClerk(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unreadable webhook payload"))
		return
	}

	if !h.verifySignature(c, payload) {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook signature"))
		return
	}

	var event clerkWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed webhook payload"))
		return
	}

	switch event.Type {
	case "user.created", "user.updated":
		email := ""
		if len(event.Data.EmailAddresses) > 0 {
			email = event.Data.EmailAddresses[0].EmailAddress
		}
		name := strings.TrimSpace(event.Data.FirstName + " " + event.Data.LastName)
		if name == "" {
			name = email
		}
		var imageURL *string
		if event.Data.ImageURL != "" {
			imageURL = &event.Data.ImageURL
		}
		user, err := h.users.SyncUser(c.Request.Context(), service.SyncUserRequest{
			ClerkUserID: event.Data.ID,
			Email:       email,
			Name:        name,
			ImageURL:    imageURL,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, user, nil)
	default:
		h.logger.Debug("ignoring webhook event", zap.String("type", event.Type))
		response.JSON(c, http.StatusOK, gin.H{"ignored": event.Type}, nil)
	}
}

// verifySignature checks the svix-style HMAC the Clerk webhook carries:
// base64(HMAC-SHA256(secret, "<id>.<timestamp>.<payload>")) must match one
// of the space-separated "v1,<sig>" entries in the signature header.
func (h *WebhookHandler) verifySignature(c *gin.Context, payload []byte) bool {
	if h.secret == "" {
		return false
	}
	msgID := c.GetHeader("svix-id")
	timestamp := c.GetHeader("svix-timestamp")
	signatures := c.GetHeader("svix-signature")
	if msgID == "" || timestamp == "" || signatures == "" {
		return false
	}

	secret := strings.TrimPrefix(h.secret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		key = []byte(secret)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID + "." + timestamp + "."))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, entry := range strings.Fields(signatures) {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) == 2 && hmac.Equal([]byte(parts[1]), []byte(expected)) {
			return true
		}
	}
	return false
}
