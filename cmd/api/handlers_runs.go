package main

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sjpark-dev/dublate/internal/database"
	"github.com/sjpark-dev/dublate/internal/metrics"
	"github.com/sjpark-dev/dublate/internal/translate"
	"github.com/sjpark-dev/dublate/pkg/models"
)

// Create run endpoint. Accepts either a JSON body with a source URL or a
// multipart form with an uploaded source file.
func (api *API) createRun(c *gin.Context) {
	var run *models.Run
	var err error

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		run, err = api.runFromUpload(c)
	} else {
		run, err = api.runFromJSON(c)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !translate.IsSupported(run.TargetLang) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported target language: %s", run.TargetLang)})
		return
	}

	run.ID = uuid.New().String()
	run.Status = models.RunStatusPending

	if err := api.repo.CreateRun(c.Request.Context(), run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create run: %v", err)})
		return
	}

	if err := api.queue.PublishRun(c.Request.Context(), run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to queue run: %v", err)})
		return
	}

	if err := api.repo.UpdateRunStatus(c.Request.Context(), run.ID, models.RunStatusQueued); err != nil {
		api.logger.WithRunID(run.ID).WithError(err).Warn("Failed to mark run queued")
	}
	run.Status = models.RunStatusQueued

	metrics.RunsCreatedTotal.Inc()

	c.JSON(http.StatusCreated, run)
}

func (api *API) runFromJSON(c *gin.Context) (*models.Run, error) {
	var req struct {
		SourceURL  string `json:"source_url" binding:"required"`
		UserID     string `json:"user_id" binding:"required"`
		TargetLang string `json:"target_lang" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, err
	}

	return &models.Run{
		UserID:     req.UserID,
		SourceURL:  req.SourceURL,
		TargetLang: req.TargetLang,
	}, nil
}

func (api *API) runFromUpload(c *gin.Context) (*models.Run, error) {
	userID := c.PostForm("user_id")
	targetLang := c.PostForm("target_lang")
	if userID == "" || targetLang == "" {
		return nil, errors.New("user_id and target_lang are required")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("no source file provided")
	}

	tempPath := filepath.Join(api.tempDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	// The worker fetches the source from object storage, so the API and
	// worker can run on different hosts.
	objectKey := fmt.Sprintf("sources/%s", filepath.Base(tempPath))
	if err := api.storage.UploadFile(c.Request.Context(), objectKey, tempPath); err != nil {
		return nil, fmt.Errorf("failed to store source: %w", err)
	}

	return &models.Run{
		UserID:     userID,
		SourceFile: objectKey,
		TargetLang: targetLang,
	}, nil
}

// Get run endpoint
func (api *API) getRun(c *gin.Context) {
	runID := c.Param("id")

	if cached, err := api.cache.GetRun(c.Request.Context(), runID); err == nil && cached != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	run, err := api.repo.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := api.cache.SetRun(c.Request.Context(), run, 30*time.Second); err != nil {
		api.logger.WithRunID(runID).WithError(err).Warn("Failed to cache run")
	}

	c.JSON(http.StatusOK, run)
}

// List runs endpoint
func (api *API) listRuns(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := api.repo.ListRuns(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}

// Cancel run endpoint. Only runs not yet picked up by a worker can be
// cancelled; an in-flight run completes or fails on its own.
func (api *API) cancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := api.repo.CancelRun(c.Request.Context(), runID); err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "Run not found or not cancellable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := api.cache.DeleteRun(c.Request.Context(), runID); err != nil {
		api.logger.WithRunID(runID).WithError(err).Warn("Failed to invalidate run cache")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Run cancelled", "run_id": runID})
}

// List outputs endpoint
func (api *API) listOutputs(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id query parameter is required"})
		return
	}

	outputs, err := api.repo.ListOutputs(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"outputs": outputs})
}
