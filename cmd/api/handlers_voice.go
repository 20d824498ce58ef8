package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sjpark-dev/dublate/internal/metrics"
	"github.com/sjpark-dev/dublate/internal/voice"
)

// List training prompts endpoint
func (api *API) listPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"prompts":     voice.TrainingPrompts,
		"total":       api.registry.PromptCount(),
		"min_samples": api.registry.MinSamples(),
	})
}

// Upload voice sample endpoint
func (api *API) uploadSample(c *gin.Context) {
	userID := c.Param("user_id")

	promptIndex, err := strconv.Atoi(c.PostForm("prompt_index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt_index must be an integer"})
		return
	}

	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read audio file"})
		return
	}
	defer src.Close()

	if err := api.registry.RecordSample(userID, promptIndex, src); err != nil {
		switch {
		case errors.Is(err, voice.ErrInvalidPromptIndex), errors.Is(err, voice.ErrInvalidUserID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to store sample: %v", err)})
		}
		return
	}

	metrics.SampleUploadsTotal.Inc()

	// Recorded sample invalidates the cached profile.
	if err := api.cache.DeleteProfile(c.Request.Context(), userID); err != nil {
		api.logger.WithUserID(userID).WithError(err).Warn("Failed to invalidate profile cache")
	}

	// Best-effort durable copy; the local registry stays authoritative.
	objectKey := fmt.Sprintf("voices/%s/sample_%d.wav", userID, promptIndex)
	if err := api.storage.UploadFile(c.Request.Context(), objectKey, api.registry.SamplePath(userID, promptIndex)); err != nil {
		api.logger.WithUserID(userID).WithError(err).Warn("Failed to archive sample to object storage")
	}

	progress, err := api.registry.Progress(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, progress)
}

// Get voice training progress endpoint
func (api *API) getProgress(c *gin.Context) {
	userID := c.Param("user_id")

	if cached, err := api.cache.GetProfile(c.Request.Context(), userID); err == nil && cached != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	profile, err := api.registry.Progress(userID)
	if err != nil {
		if errors.Is(err, voice.ErrInvalidUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := api.cache.SetProfile(c.Request.Context(), profile, 30*time.Second); err != nil {
		api.logger.WithUserID(userID).WithError(err).Warn("Failed to cache profile")
	}

	c.JSON(http.StatusOK, profile)
}

// Train voice profile endpoint
func (api *API) trainProfile(c *gin.Context) {
	userID := c.Param("user_id")

	profile, err := api.registry.MarkTrained(userID)
	if err != nil {
		switch {
		case errors.Is(err, voice.ErrInsufficientSamples):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, voice.ErrProfileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, voice.ErrInvalidUserID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	metrics.ProfilesTrainedTotal.Inc()

	if err := api.cache.DeleteProfile(c.Request.Context(), userID); err != nil {
		api.logger.WithUserID(userID).WithError(err).Warn("Failed to invalidate profile cache")
	}

	c.JSON(http.StatusOK, profile)
}

// Reset voice profile endpoint
func (api *API) resetProfile(c *gin.Context) {
	userID := c.Param("user_id")

	if err := api.registry.Reset(userID); err != nil {
		if errors.Is(err, voice.ErrInvalidUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := api.cache.DeleteProfile(c.Request.Context(), userID); err != nil {
		api.logger.WithUserID(userID).WithError(err).Warn("Failed to invalidate profile cache")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Voice profile reset", "user_id": userID})
}

// List trained profiles endpoint
func (api *API) listProfiles(c *gin.Context) {
	profiles, err := api.registry.ListProfiles()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}
