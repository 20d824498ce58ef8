package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjpark-dev/dublate/internal/config"
	"github.com/sjpark-dev/dublate/pkg/models"
)

func writeTestAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0644))
	return path
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.STTConfig{
		Endpoint: srv.URL,
		Model:    "base",
		Timeout:  5 * time.Second,
	})
}

func TestTranscribe(t *testing.T) {
	t.Run("ParsesSegmentsAndLanguage", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "base", r.FormValue("model"))
			assert.Equal(t, "verbose_json", r.FormValue("response_format"))

			_, _, err := r.FormFile("file")
			require.NoError(t, err)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"language": "ko",
				"text": "full text",
				"segments": [
					{"id": 0, "start": 0.0, "end": 2.4, "text": "first"},
					{"id": 1, "start": 2.4, "end": 5.1, "text": "second"}
				]
			}`))
		})

		transcript, err := client.Transcribe(context.Background(), writeTestAudio(t))
		require.NoError(t, err)

		assert.Equal(t, "ko", transcript.Language)
		require.Len(t, transcript.Segments, 2)
		assert.Equal(t, 0, transcript.Segments[0].ID)
		assert.Equal(t, "first", transcript.Segments[0].SourceText)
		assert.InDelta(t, 5.1, transcript.Segments[1].End, 1e-9)
		assert.NoError(t, transcript.Validate())
	})

	t.Run("BackendError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		})

		_, err := client.Transcribe(context.Background(), writeTestAudio(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTranscription)
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("MissingAudioFile", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("backend should not be called")
		})

		_, err := client.Transcribe(context.Background(), "/nonexistent/audio.wav")
		assert.ErrorIs(t, err, ErrTranscription)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("SortsOutOfOrderSegments", func(t *testing.T) {
		tr := &models.Transcript{Segments: []models.Segment{
			{ID: 1, Start: 3.0, End: 5.0},
			{ID: 0, Start: 0.0, End: 2.0},
		}}

		normalize(tr)
		require.NoError(t, tr.Validate())
		assert.Equal(t, 0, tr.Segments[0].ID)
		assert.Equal(t, 1, tr.Segments[1].ID)
	})

	t.Run("ClampsOverlappingStart", func(t *testing.T) {
		tr := &models.Transcript{Segments: []models.Segment{
			{ID: 0, Start: 0.0, End: 2.05},
			{ID: 1, Start: 2.0, End: 4.0},
		}}

		normalize(tr)
		require.NoError(t, tr.Validate())
		assert.InDelta(t, 2.05, tr.Segments[1].Start, 1e-9)
	})

	t.Run("DropsSwallowedSegments", func(t *testing.T) {
		tr := &models.Transcript{Segments: []models.Segment{
			{ID: 0, Start: 0.0, End: 3.0},
			{ID: 1, Start: 1.0, End: 2.5}, // fully inside the previous segment
			{ID: 2, Start: 3.0, End: 4.0},
		}}

		normalize(tr)
		require.NoError(t, tr.Validate())
		require.Len(t, tr.Segments, 2)
		assert.Equal(t, 2, tr.Segments[1].ID)
	})
}
