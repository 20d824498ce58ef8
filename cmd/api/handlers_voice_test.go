package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjpark-dev/dublate/internal/cache"
	"github.com/sjpark-dev/dublate/internal/config"
	"github.com/sjpark-dev/dublate/internal/logging"
	"github.com/sjpark-dev/dublate/internal/translate"
	"github.com/sjpark-dev/dublate/internal/voice"
	"github.com/sjpark-dev/dublate/pkg/models"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisCache, err := cache.NewCache(config.RedisConfig{
		Host: mr.Host(),
		Port: mr.Server().Addr().Port,
	})
	require.NoError(t, err)
	t.Cleanup(func() { redisCache.Close() })

	return &API{
		cache:    redisCache,
		registry: voice.NewRegistry(t.TempDir(), 30),
		logger:   logging.NewDefault(),
	}
}

func voiceRouter(api *API) *gin.Engine {
	router := gin.New()
	v := router.Group("/api/v1/voice")
	v.GET("/prompts", api.listPrompts)
	v.GET("/users/:user_id/progress", api.getProgress)
	v.POST("/users/:user_id/train", api.trainProfile)
	v.DELETE("/users/:user_id", api.resetProfile)
	v.GET("/profiles", api.listProfiles)
	return router
}

func TestListPrompts(t *testing.T) {
	api := newTestAPI(t)
	router := voiceRouter(api)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/voice/prompts", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Prompts    []string `json:"prompts"`
		Total      int      `json:"total"`
		MinSamples int      `json:"min_samples"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Len(t, resp.Prompts, 40)
	assert.Equal(t, 40, resp.Total)
	assert.Equal(t, 30, resp.MinSamples)
}

func TestVoiceProfileFlow(t *testing.T) {
	api := newTestAPI(t)
	router := voiceRouter(api)

	// Empty progress for a new user
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/voice/users/alice/progress", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var profile models.VoiceProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Empty(t, profile.Completed)
	assert.Equal(t, models.VoiceStatusIncomplete, profile.Status)

	// Training below the threshold is rejected
	for i := 0; i < 29; i++ {
		require.NoError(t, api.registry.RecordSample("alice", i, strings.NewReader("RIFF")))
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/voice/users/alice/train", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	// One more sample meets the gate
	require.NoError(t, api.registry.RecordSample("alice", 29, strings.NewReader("RIFF")))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/voice/users/alice/train", nil))
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, models.VoiceStatusReady, profile.Status)

	// Trained profile shows up in the listing
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/voice/profiles", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")

	// Reset wipes everything
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/v1/voice/users/alice", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/voice/users/alice/progress", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Empty(t, profile.Completed)
	assert.Equal(t, models.VoiceStatusIncomplete, profile.Status)
}

func TestTranslateTextEndpoint(t *testing.T) {
	api := newTestAPI(t)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[["Hello","안녕"]],null,"ko"]`))
	}))
	t.Cleanup(backend.Close)

	api.translator = translate.New(config.TranslateConfig{
		Endpoint: backend.URL,
		Timeout:  5 * time.Second,
	}, nil)

	router := gin.New()
	router.POST("/api/v1/translate/text", api.translateText)

	body, _ := json.Marshal(map[string]string{
		"text":        "안녕",
		"target_lang": "en",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/translate/text", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result translate.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Hello", result.Text)
	assert.Equal(t, "ko", result.DetectedSource)

	// Unsupported target language rejected up front
	body, _ = json.Marshal(map[string]string{"text": "hi", "target_lang": "xx"})
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/v1/translate/text", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
