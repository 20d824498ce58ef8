package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjpark-dev/dublate/internal/config"
)

func writeSpeakerRef(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample_0.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0644))
	return path
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.TTSConfig{
		Endpoint: srv.URL,
		Device:   "cpu",
		Timeout:  5 * time.Second,
	})
}

func newBackend(t *testing.T, warmups *int32, synth http.HandlerFunc) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/warmup", func(w http.ResponseWriter, r *http.Request) {
		if warmups != nil {
			atomic.AddInt32(warmups, 1)
		}
		assert.Equal(t, "cpu", r.URL.Query().Get("device"))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/tts_to_audio", synth)
	return mux
}

func TestSynthesize(t *testing.T) {
	t.Run("WritesClip", func(t *testing.T) {
		speakerRef := writeSpeakerRef(t)

		client := newTestClient(t, newBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
			var req synthesisRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "hello world", req.Text)
			assert.Equal(t, speakerRef, req.SpeakerWav)
			assert.Equal(t, "en", req.Language)

			w.Write([]byte("RIFFsynthWAVE"))
		}))

		outputPath := filepath.Join(t.TempDir(), "clip.wav")
		err := client.Synthesize(context.Background(), "hello world", speakerRef, "en", outputPath)
		require.NoError(t, err)

		data, err := os.ReadFile(outputPath)
		require.NoError(t, err)
		assert.Equal(t, "RIFFsynthWAVE", string(data))
	})

	t.Run("MissingSpeakerRefNeverCallsBackend", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("backend should not be called")
		}))

		err := client.Synthesize(context.Background(), "hello", "/nonexistent/sample.wav", "en", "/tmp/clip.wav")
		assert.ErrorIs(t, err, ErrSpeakerRefUnavailable)
		assert.NotErrorIs(t, err, ErrSynthesis)
	})

	t.Run("BackendErrorIsSynthesisFailure", func(t *testing.T) {
		speakerRef := writeSpeakerRef(t)

		client := newTestClient(t, newBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "cuda out of memory", http.StatusInternalServerError)
		}))

		err := client.Synthesize(context.Background(), "hello", speakerRef, "en", "/tmp/clip.wav")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSynthesis)
		assert.NotErrorIs(t, err, ErrSpeakerRefUnavailable)
		assert.Contains(t, err.Error(), "cuda out of memory")
	})

	t.Run("WarmupRunsOnce", func(t *testing.T) {
		speakerRef := writeSpeakerRef(t)

		var warmups int32
		client := newTestClient(t, newBackend(t, &warmups, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("RIFF"))
		}))

		outDir := t.TempDir()
		for i := 0; i < 3; i++ {
			out := filepath.Join(outDir, "clip.wav")
			require.NoError(t, client.Synthesize(context.Background(), "hi", speakerRef, "en", out))
		}

		assert.Equal(t, int32(1), atomic.LoadInt32(&warmups))
	})

	t.Run("WarmupFailure", func(t *testing.T) {
		speakerRef := writeSpeakerRef(t)

		mux := http.NewServeMux()
		mux.HandleFunc("/warmup", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model checkpoint missing", http.StatusServiceUnavailable)
		})
		client := newTestClient(t, mux)

		err := client.Synthesize(context.Background(), "hi", speakerRef, "en", "/tmp/clip.wav")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSynthesis)
		assert.Contains(t, err.Error(), "model checkpoint missing")
	})
}
