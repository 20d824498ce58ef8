package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sjpark-dev/dublate/internal/translate"
	"github.com/sjpark-dev/dublate/pkg/models"
)

// List supported languages endpoint
func (api *API) listLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": translate.SupportedLanguages})
}

// Translate text endpoint
func (api *API) translateText(c *gin.Context) {
	var req struct {
		Text       string `json:"text" binding:"required"`
		SourceLang string `json:"source_lang"`
		TargetLang string `json:"target_lang" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.SourceLang == "" {
		req.SourceLang = translate.LangAuto
	}

	result, err := api.translator.Translate(c.Request.Context(), req.Text, req.SourceLang, req.TargetLang)
	if err != nil {
		if errors.Is(err, translate.ErrUnsupportedLanguage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Translate segments endpoint
func (api *API) translateSegments(c *gin.Context) {
	var req struct {
		Segments   []models.Segment `json:"segments" binding:"required"`
		SourceLang string           `json:"source_lang"`
		TargetLang string           `json:"target_lang" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.SourceLang == "" {
		req.SourceLang = translate.LangAuto
	}
	if !translate.IsSupported(req.TargetLang) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported target language: %s", req.TargetLang)})
		return
	}

	failures := api.translator.TranslateSegments(c.Request.Context(), req.Segments, req.SourceLang, req.TargetLang)

	failed := make(map[int]string, len(failures))
	for id, err := range failures {
		failed[id] = err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"segments": req.Segments,
		"failed":   failed,
	})
}

// Create transcription endpoint
func (api *API) createTranscription(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No media file provided"})
		return
	}

	tempPath := filepath.Join(api.tempDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}
	defer os.Remove(tempPath)

	streams, err := api.ffmpeg.AudioStreams(c.Request.Context(), tempPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to probe media: %v", err)})
		return
	}
	if streams == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Media carries no audio stream"})
		return
	}

	audioPath := tempPath + ".wav"
	if err := api.ffmpeg.ExtractAudio(c.Request.Context(), tempPath, audioPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to extract audio: %v", err)})
		return
	}
	defer os.Remove(audioPath)

	transcript, err := api.transcriber.Transcribe(c.Request.Context(), audioPath)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, transcript)
}
