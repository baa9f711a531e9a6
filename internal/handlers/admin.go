package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"imageguard/api/internal/middleware"
	"imageguard/api/internal/models"
	"imageguard/api/internal/service"
)

type reviewRequest struct {
	Decision string `json:"decision" binding:"required"`
	Notes    string `json:"notes"`
}

type bulkReviewRequest struct {
	ImageIDs []string `json:"imageIds" binding:"required"`
	Decision string   `json:"decision" binding:"required"`
	Notes    string   `json:"notes"`
}

type queueItemResponse struct {
	ID                 string     `json:"id"`
	OwnerID            string     `json:"ownerId"`
	Status             string     `json:"status"`
	IdentityConfidence *float64   `json:"identityConfidence,omitempty"`
	MinorConfidence    *float64   `json:"minorConfidence,omitempty"`
	AppealReason       *string    `json:"appealReason,omitempty"`
	AppealSubmittedAt  *time.Time `json:"appealSubmittedAt,omitempty"`
	Evidence           any        `json:"evidence,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func toQueueItem(image models.LibraryImage) queueItemResponse {
	item := queueItemResponse{
		ID:                 image.ID,
		OwnerID:            image.OwnerID,
		Status:             string(image.Status),
		IdentityConfidence: image.IdentityConfidence,
		MinorConfidence:    image.MinorConfidence,
		AppealReason:       image.AppealReason,
		AppealSubmittedAt:  image.AppealSubmittedAt,
		CreatedAt:          image.CreatedAt,
	}
	if len(image.ModerationEvidence) > 0 {
		item.Evidence = json.RawMessage(image.ModerationEvidence)
	}
	return item
}

func (h HandlerSet) ReviewQueue(c *gin.Context) {
	limit := 50
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	images, err := h.library.ReviewQueue(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("review queue read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue_failed"})
		return
	}

	items := make([]queueItemResponse, 0, len(images))
	for _, image := range images {
		items = append(items, toQueueItem(image))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) ReviewImage(c *gin.Context) {
	adminID := c.GetString(middleware.ContextUserID)

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision_required"})
		return
	}

	image, err := h.library.Review(c.Request.Context(), adminID, c.Param("imageId"), req.Decision, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDecision):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_decision"})
		case errors.Is(err, service.ErrImageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		case errors.Is(err, service.ErrAlreadyReviewed):
			c.JSON(http.StatusConflict, gin.H{"error": "already_reviewed"})
		default:
			h.log.Error().Err(err).Str("admin_id", adminID).Msg("review failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "review_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"image": toImageResponse(image)})
}

func (h HandlerSet) BulkReview(c *gin.Context) {
	adminID := c.GetString(middleware.ContextUserID)

	var req bulkReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image_ids_required"})
		return
	}

	count, err := h.library.BulkReview(c.Request.Context(), adminID, req.ImageIDs, req.Decision, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBulkTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": "bulk_limit_exceeded"})
		case errors.Is(err, service.ErrInvalidDecision):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_decision"})
		default:
			h.log.Error().Err(err).Str("admin_id", adminID).Msg("bulk review failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "bulk_review_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": count})
}
