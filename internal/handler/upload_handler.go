package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedulrr/schedulrr-api/internal/uploads"
	"github.com/schedulrr/schedulrr-api/pkg/config"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
	"github.com/schedulrr/schedulrr-api/pkg/response"
)

// UploadHandler proxies event attachment uploads to Cloudinary.
type UploadHandler struct {
	client *uploads.CloudinaryClient
	cfg    config.CloudinaryConfig
}

// NewUploadHandler constructs a new UploadHandler.
func NewUploadHandler(client *uploads.CloudinaryClient, cfg config.CloudinaryConfig) *UploadHandler {
	return &UploadHandler{client: client, cfg: cfg}
}

// Upload godoc
// @Summary Upload an event attachment
// @Tags Uploads
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to upload"
// @Param kind formData string false "Attachment kind (image/document)"
// @Success 201 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	if _, ok := currentClerkUserID(c); !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing file upload"))
		return
	}

	kind := c.DefaultPostForm("kind", "image")
	resourceType := "image"
	limit := h.cfg.MaxImageSize
	if kind == "document" {
		resourceType = "auto"
		limit = h.cfg.MaxDocumentSize
	} else if kind != "image" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "kind must be image or document"))
		return
	}
	if limit > 0 && header.Size > limit {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", limit)))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.client.Upload(c.Request.Context(), header.Filename, file, resourceType)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file"))
		return
	}
	response.Created(c, result)
}
