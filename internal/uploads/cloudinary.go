// Package uploads proxies event attachments to Cloudinary using signed
// REST uploads.
package uploads

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/pkg/config"
)

// Result carries the stored file's public location.
type Result struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// CloudinaryClient uploads files to a Cloudinary cloud.
type CloudinaryClient struct {
	cloudName  string
	apiKey     string
	apiSecret  string
	folder     string
	httpClient *http.Client
	logger     *zap.Logger

	// now is injected for signature tests.
	now func() time.Time
}

// NewCloudinaryClient builds an upload client from configuration.
func NewCloudinaryClient(cfg config.CloudinaryConfig, logger *zap.Logger) *CloudinaryClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudinaryClient{
		cloudName:  cfg.CloudName,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		folder:     cfg.Folder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends the file to Cloudinary under the configured folder.
// resourceType is "image" or "auto" per the Cloudinary REST API.
func (c *CloudinaryClient) Upload(ctx context.Context, filename string, file io.Reader, resourceType string) (*Result, error) {
	if resourceType == "" {
		resourceType = "auto"
	}

	timestamp := fmt.Sprintf("%d", c.now().Unix())
	signature := c.sign(timestamp)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy upload payload: %w", err)
	}
	for key, value := range map[string]string{
		"api_key":   c.apiKey,
		"timestamp": timestamp,
		"signature": signature,
		"folder":    c.folder,
	} {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write upload field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload form: %w", err)
	}

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/%s/upload", c.cloudName, resourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload to cloudinary: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		message := "upload failed"
		if parsed.Error != nil {
			message = parsed.Error.Message
		}
		return nil, fmt.Errorf("cloudinary upload failed with status %d: %s", resp.StatusCode, message)
	}

	c.logger.Info("file uploaded",
		zap.String("public_id", parsed.PublicID),
		zap.String("resource_type", resourceType))

	return &Result{URL: parsed.SecureURL, PublicID: parsed.PublicID}, nil
}

// sign computes the Cloudinary request signature over the sorted
// parameter string followed by the api secret.
func (c *CloudinaryClient) sign(timestamp string) string {
	payload := fmt.Sprintf("folder=%s&timestamp=%s%s", c.folder, timestamp, c.apiSecret)
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
