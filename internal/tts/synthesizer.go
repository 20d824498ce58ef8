// Package tts adapts an XTTS-style voice-cloning server behind the
// pipeline's Synthesizer contract.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/sjpark-dev/dublate/internal/config"
)

// ErrSynthesis wraps any backend-side synthesis failure.
var ErrSynthesis = errors.New("synthesis failed")

// ErrSpeakerRefUnavailable means the speaker reference sample is missing or
// unreadable. Reported distinctly from backend failures so the orchestrator
// can tell "no voice profile" apart from "synthesis failed".
var ErrSpeakerRefUnavailable = errors.New("speaker reference unavailable")

// Client calls a voice-cloning synthesis server over HTTP. The backend clones
// the voice at inference time from the speaker reference WAV shipped with
// each request.
type Client struct {
	endpoint string
	device   string
	http     *http.Client

	warmupOnce sync.Once
	warmupErr  error
}

// New creates a new synthesis client
func New(cfg config.TTSConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		device:   cfg.Device,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type synthesisRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize renders text as speech in the voice of the speaker reference
// sample and writes the WAV clip to outputPath.
func (c *Client) Synthesize(ctx context.Context, text, speakerRef, lang, outputPath string) error {
	if _, err := os.Stat(speakerRef); err != nil {
		return fmt.Errorf("%w: %v", ErrSpeakerRefUnavailable, err)
	}

	if err := c.warmup(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:       text,
		SpeakerWav: speakerRef,
		Language:   lang,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	url := c.endpoint + "/tts_to_audio"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: backend http %d: %s", ErrSynthesis, resp.StatusCode, string(b))
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("%w: create output: %v", ErrSynthesis, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: write clip: %v", ErrSynthesis, err)
	}

	return nil
}

// warmup asks the backend to load its model once per process. Concurrent
// callers share a single initialization; later calls see the cached result.
func (c *Client) warmup(ctx context.Context) error {
	c.warmupOnce.Do(func() {
		url := fmt.Sprintf("%s/warmup?device=%s", c.endpoint, c.device)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			c.warmupErr = fmt.Errorf("%w: warmup: %v", ErrSynthesis, err)
			return
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.warmupErr = fmt.Errorf("%w: warmup: %v", ErrSynthesis, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(resp.Body)
			c.warmupErr = fmt.Errorf("%w: warmup http %d: %s", ErrSynthesis, resp.StatusCode, string(b))
		}
	})

	return c.warmupErr
}
