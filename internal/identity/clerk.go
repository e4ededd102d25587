// Package identity talks to the Clerk backend API for delegated OAuth
// credentials and webhook-driven user sync.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/pkg/config"
)

// ErrNotConnected indicates the user has no Google OAuth grant on file.
var ErrNotConnected = errors.New("no google oauth token for user")

// ClerkClient is a thin REST client for the Clerk backend API.
type ClerkClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClerkClient constructs a client with a bounded request timeout.
func NewClerkClient(cfg config.ClerkConfig, logger *zap.Logger) *ClerkClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClerkClient{
		baseURL:    cfg.APIBaseURL,
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

type oauthTokenEntry struct {
	Token string `json:"token"`
}

type oauthTokenPage struct {
	Data []oauthTokenEntry `json:"data"`
}

// GoogleOAuthToken fetches the delegated Google access token for the given
// external user. Returns ErrNotConnected when the user never granted
// calendar access.
func (c *ClerkClient) GoogleOAuthToken(ctx context.Context, clerkUserID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/oauth_access_tokens/oauth_google",
		c.baseURL, url.PathEscape(clerkUserID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build oauth token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch oauth token: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotConnected
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("clerk oauth token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read oauth token response: %w", err)
	}

	// Clerk historically returned a bare array; newer API versions wrap it
	// in a paginated object.
	var entries []oauthTokenEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		var page oauthTokenPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return "", fmt.Errorf("decode oauth token response: %w", err)
		}
		entries = page.Data
	}

	if len(entries) == 0 || entries[0].Token == "" {
		return "", ErrNotConnected
	}
	return entries[0].Token, nil
}
