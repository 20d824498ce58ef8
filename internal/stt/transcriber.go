// Package stt adapts a whisper-style speech-to-text server behind the
// pipeline's Transcriber contract.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/sjpark-dev/dublate/internal/config"
	"github.com/sjpark-dev/dublate/pkg/models"
)

// ErrTranscription wraps any backend-side transcription failure.
var ErrTranscription = errors.New("transcription failed")

// Client calls a whisper-compatible transcription server over HTTP. The
// server exposes the OpenAI audio.transcriptions surface; model selection is
// injected here so callers never see backend details.
type Client struct {
	endpoint string
	model    string
	http     *http.Client
}

// New creates a new transcription client
func New(cfg config.STTConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type transcriptionResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe sends the whole audio track in one call and returns the
// timestamped transcript with the detected source language.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (*models.Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open audio: %v", ErrTranscription, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	url := c.endpoint + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: backend http %d: %s", ErrTranscription, resp.StatusCode, string(b))
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTranscription, err)
	}

	transcript := &models.Transcript{
		Language: tr.Language,
		Segments: make([]models.Segment, 0, len(tr.Segments)),
	}
	for _, seg := range tr.Segments {
		transcript.Segments = append(transcript.Segments, models.Segment{
			ID:         seg.ID,
			Start:      seg.Start,
			End:        seg.End,
			SourceText: seg.Text,
		})
	}

	normalize(transcript)

	if err := transcript.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid transcript: %v", ErrTranscription, err)
	}

	return transcript, nil
}

// normalize repairs the small timing artifacts whisper-style backends emit:
// segments out of order around silence gaps and starts that bleed a few
// milliseconds into the previous segment. Overlapping starts are clamped to
// the previous end; segments left with no duration are dropped.
func normalize(t *models.Transcript) {
	sort.Slice(t.Segments, func(i, j int) bool {
		return t.Segments[i].Start < t.Segments[j].Start
	})

	out := t.Segments[:0]
	for _, seg := range t.Segments {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if seg.Start < prev.End {
				seg.Start = prev.End
			}
		}
		if seg.End <= seg.Start {
			continue
		}
		out = append(out, seg)
	}
	t.Segments = out
}
