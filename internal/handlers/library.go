package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"imageguard/api/internal/middleware"
	"imageguard/api/internal/models"
	"imageguard/api/internal/moderation"
	"imageguard/api/internal/service"
)

const signedURLTTL = 15 * time.Minute

type imageResponse struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	MimeType          string     `json:"mimeType"`
	SizeBytes         int64      `json:"sizeBytes"`
	CanUse            bool       `json:"canUse"`
	CanAppeal         bool       `json:"canAppeal"`
	AppealSubmittedAt *time.Time `json:"appealSubmittedAt,omitempty"`
	ReviewedAt        *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes       *string    `json:"reviewNotes,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func toImageResponse(image models.LibraryImage) imageResponse {
	return imageResponse{
		ID:                image.ID,
		Status:            string(image.Status),
		MimeType:          image.MimeType,
		SizeBytes:         image.SizeBytes,
		CanUse:            image.CanUse(),
		CanAppeal:         image.CanAppeal(),
		AppealSubmittedAt: image.AppealSubmittedAt,
		ReviewedAt:        image.ReviewedAt,
		ReviewNotes:       image.ReviewNotes,
		ExpiresAt:         image.ExpiresAt,
		CreatedAt:         image.CreatedAt,
	}
}

func (h HandlerSet) UploadImage(c *gin.Context) {
	ownerID := c.GetString(middleware.ContextUserID)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read_failed"})
		return
	}

	image, err := h.library.Upload(c.Request.Context(), service.UploadInput{
		OwnerID: ownerID,
		Data:    data,
	})
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrUnsupportedFormat):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unsupported_format"})
		case errors.Is(err, moderation.ErrProviderUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "moderation_unavailable"})
		default:
			h.log.Error().Err(err).Str("owner_id", ownerID).Msg("upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"image": toImageResponse(image)})
}

func (h HandlerSet) ListImages(c *gin.Context) {
	ownerID := c.GetString(middleware.ContextUserID)

	limit := 50
	offset := 0
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	images, err := h.library.List(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("owner_id", ownerID).Msg("list images failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	items := make([]imageResponse, 0, len(images))
	for _, image := range images {
		items = append(items, toImageResponse(image))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) GetImage(c *gin.Context) {
	ownerID := c.GetString(middleware.ContextUserID)

	image, err := h.library.Get(c.Request.Context(), ownerID, c.Param("imageId"))
	if err != nil {
		if errors.Is(err, service.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"image": toImageResponse(image)})
}

func (h HandlerSet) GetImageURL(c *gin.Context) {
	ownerID := c.GetString(middleware.ContextUserID)

	url, err := h.library.SignedURL(c.Request.Context(), ownerID, c.Param("imageId"), signedURLTTL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		case errors.Is(err, service.ErrImageNotUsable):
			c.JSON(http.StatusForbidden, gin.H{"error": "image_not_usable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sign_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "expiresIn": int(signedURLTTL.Seconds())})
}

type appealRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h HandlerSet) SubmitAppeal(c *gin.Context) {
	ownerID := c.GetString(middleware.ContextUserID)

	var req appealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason_required"})
		return
	}

	image, err := h.library.SubmitAppeal(c.Request.Context(), ownerID, c.Param("imageId"), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAppealReasonLength):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_reason_length"})
		case errors.Is(err, service.ErrImageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		case errors.Is(err, service.ErrAppealAlreadySubmitted):
			c.JSON(http.StatusConflict, gin.H{"error": "appeal_already_submitted"})
		case errors.Is(err, service.ErrNotAppealable):
			c.JSON(http.StatusConflict, gin.H{"error": "not_appealable"})
		default:
			h.log.Error().Err(err).Str("owner_id", ownerID).Msg("appeal failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "appeal_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"image": toImageResponse(image)})
}
