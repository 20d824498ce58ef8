package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjpark-dev/dublate/internal/config"
	"github.com/sjpark-dev/dublate/pkg/models"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*Result
	sets    int
}

func (m *memoryCache) GetTranslation(ctx context.Context, key string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key], nil
}

func (m *memoryCache) SetTranslation(ctx context.Context, key string, result *Result, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]*Result)
	}
	m.entries[key] = result
	m.sets++
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cache ResultCache) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.TranslateConfig{
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
		CacheTTL: time.Hour,
	}, cache)
}

func TestTranslate(t *testing.T) {
	t.Run("TranslatesAndEchoesDetectedLanguage", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "auto", r.URL.Query().Get("sl"))
			assert.Equal(t, "en", r.URL.Query().Get("tl"))
			assert.Equal(t, "안녕하세요", r.URL.Query().Get("q"))

			w.Write([]byte(`[[["Hello","안녕하세요",null,null,10]],null,"ko"]`))
		}, nil)

		result, err := client.Translate(context.Background(), "안녕하세요", "auto", "en")
		require.NoError(t, err)

		assert.Equal(t, "Hello", result.Text)
		assert.Equal(t, "ko", result.DetectedSource)
		assert.Equal(t, "en", result.TargetLang)
	})

	t.Run("JoinsMultipleChunks", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[[["Hello ","안녕 "],["world","세상"]],null,"ko"]`))
		}, nil)

		result, err := client.Translate(context.Background(), "안녕 세상", "ko", "en")
		require.NoError(t, err)
		assert.Equal(t, "Hello world", result.Text)
	})

	t.Run("UnsupportedTargetLanguage", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("backend should not be called")
		}, nil)

		_, err := client.Translate(context.Background(), "hello", "auto", "xx")
		assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	})

	t.Run("BackendError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}, nil)

		_, err := client.Translate(context.Background(), "hello", "auto", "ko")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTranslation)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("CacheHitSkipsBackend", func(t *testing.T) {
		calls := 0
		cache := &memoryCache{}
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Write([]byte(`[[["Hello","안녕"]],null,"ko"]`))
		}, cache)

		_, err := client.Translate(context.Background(), "안녕", "auto", "en")
		require.NoError(t, err)
		_, err = client.Translate(context.Background(), "안녕", "auto", "en")
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, cache.sets)
	})
}

func TestTranslateSegments(t *testing.T) {
	t.Run("PreservesIDsAndTimings", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[[["translated","original"]],null,"ko"]`))
		}, nil)

		segments := []models.Segment{
			{ID: 0, Start: 0.0, End: 2.0, SourceText: "첫번째"},
			{ID: 1, Start: 2.0, End: 4.0, SourceText: "두번째"},
		}

		failures := client.TranslateSegments(context.Background(), segments, "auto", "en")
		assert.Empty(t, failures)

		assert.Equal(t, 0, segments[0].ID)
		assert.InDelta(t, 2.0, segments[0].End, 1e-9)
		assert.Equal(t, "translated", segments[0].TranslatedText)
		assert.Equal(t, "첫번째", segments[0].SourceText)
	})

	t.Run("RecordsPerSegmentFailures", func(t *testing.T) {
		calls := 0
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 2 {
				http.Error(w, "backend unavailable", http.StatusBadGateway)
				return
			}
			w.Write([]byte(`[[["ok","src"]],null,"ko"]`))
		}, nil)

		segments := []models.Segment{
			{ID: 10, Start: 0, End: 1, SourceText: "a"},
			{ID: 11, Start: 1, End: 2, SourceText: "b"},
			{ID: 12, Start: 2, End: 3, SourceText: "c"},
		}

		failures := client.TranslateSegments(context.Background(), segments, "auto", "en")
		require.Len(t, failures, 1)
		assert.ErrorIs(t, failures[11], ErrTranslation)

		assert.Equal(t, "ok", segments[0].TranslatedText)
		assert.Empty(t, segments[1].TranslatedText)
		assert.Equal(t, "ok", segments[2].TranslatedText)
	})
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("ko"))
	assert.True(t, IsSupported("zh-CN"))
	assert.False(t, IsSupported("xx"))
	assert.False(t, IsSupported(""))
	assert.Len(t, SupportedLanguages, 14)
}
