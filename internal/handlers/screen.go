package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"imageguard/api/internal/moderation"
)

type screenRequest struct {
	Image              string `json:"image" binding:"required"`
	CheckIdentity      *bool  `json:"checkIdentity"`
	CheckContentLabels *bool  `json:"checkContentLabels"`
}

type screenBatchRequest struct {
	Images             []string `json:"images" binding:"required"`
	CheckIdentity      *bool    `json:"checkIdentity"`
	CheckContentLabels *bool    `json:"checkContentLabels"`
}

type screenURLRequest struct {
	URL                string `json:"url" binding:"required"`
	CheckIdentity      *bool  `json:"checkIdentity"`
	CheckContentLabels *bool  `json:"checkContentLabels"`
}

// both optional detectors default to on; face/age always runs regardless
func screenOptions(checkIdentity, checkContentLabels *bool) moderation.Options {
	opts := moderation.Options{CheckIdentity: true, CheckContentLabels: true}
	if checkIdentity != nil {
		opts.CheckIdentity = *checkIdentity
	}
	if checkContentLabels != nil {
		opts.CheckContentLabels = *checkContentLabels
	}
	return opts
}

func (h HandlerSet) ScreenImage(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image_required"})
		return
	}

	result := h.screener.ScreenImage(c.Request.Context(), moderation.FromString(req.Image), screenOptions(req.CheckIdentity, req.CheckContentLabels))
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h HandlerSet) ScreenBatch(c *gin.Context) {
	var req screenBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "images_required"})
		return
	}

	inputs := make([]moderation.ImageInput, len(req.Images))
	for i, image := range req.Images {
		inputs[i] = moderation.FromString(image)
	}

	result, err := h.screener.ScreenImages(c.Request.Context(), inputs, screenOptions(req.CheckIdentity, req.CheckContentLabels))
	if err != nil {
		if errors.Is(err, moderation.ErrTooManyImages) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "too_many_images"})
			return
		}
		h.log.Error().Err(err).Msg("batch screening failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "screening_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h HandlerSet) ScreenURL(c *gin.Context) {
	var req screenURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url_required"})
		return
	}

	result := h.screener.ScreenImageFromURL(c.Request.Context(), req.URL, screenOptions(req.CheckIdentity, req.CheckContentLabels))
	c.JSON(http.StatusOK, gin.H{"result": result})
}
