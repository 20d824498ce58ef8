package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/sjpark-dev/dublate/internal/config"
	"github.com/sjpark-dev/dublate/internal/translate"
	"github.com/sjpark-dev/dublate/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(config.RedisConfig{
		Host: mr.Host(),
		Port: mr.Server().Addr().Port,
	})
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCache_TranslationOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	result := &translate.Result{
		Text:           "Hello",
		SourceLang:     "auto",
		TargetLang:     "en",
		DetectedSource: "ko",
	}

	err := cache.SetTranslation(ctx, "translation:abc123", result, time.Hour)
	if err != nil {
		t.Fatalf("SetTranslation failed: %v", err)
	}

	retrieved, err := cache.GetTranslation(ctx, "translation:abc123")
	if err != nil {
		t.Fatalf("GetTranslation failed: %v", err)
	}

	if retrieved == nil {
		t.Fatal("Retrieved translation should not be nil")
	}

	if retrieved.Text != result.Text {
		t.Errorf("Expected text %s, got %s", result.Text, retrieved.Text)
	}

	if retrieved.DetectedSource != result.DetectedSource {
		t.Errorf("Expected detected source %s, got %s", result.DetectedSource, retrieved.DetectedSource)
	}

	// Cache miss returns nil result, nil error
	missing, err := cache.GetTranslation(ctx, "translation:missing")
	if err != nil {
		t.Fatalf("GetTranslation for missing key should not error: %v", err)
	}

	if missing != nil {
		t.Error("Missing translation should return nil")
	}
}

func TestCache_RunOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	run := &models.Run{
		ID:         "test-run-1",
		UserID:     "alice",
		TargetLang: "en",
		Status:     models.RunStatusProcessing,
		Report: models.ReportList{
			{ID: 0, Start: 0, End: 2},
			{ID: 1, Start: 2, End: 4, Stage: models.StageTranslate, Error: "backend unavailable"},
		},
	}

	if err := cache.SetRun(ctx, run, 5*time.Minute); err != nil {
		t.Fatalf("SetRun failed: %v", err)
	}

	retrieved, err := cache.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if retrieved == nil {
		t.Fatal("Retrieved run should not be nil")
	}

	if retrieved.Status != run.Status {
		t.Errorf("Expected status %s, got %s", run.Status, retrieved.Status)
	}

	if len(retrieved.Report) != 2 {
		t.Fatalf("Expected 2 report entries, got %d", len(retrieved.Report))
	}

	if !retrieved.Report[1].Failed() {
		t.Error("Second report entry should be failed")
	}

	if err := cache.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	deleted, err := cache.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun after delete should not error: %v", err)
	}

	if deleted != nil {
		t.Error("Deleted run should return nil")
	}
}

func TestCache_RunStage(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	if err := cache.SetRunStage(ctx, "run-1", models.StageSynthesize, time.Minute); err != nil {
		t.Fatalf("SetRunStage failed: %v", err)
	}

	stage, err := cache.GetRunStage(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRunStage failed: %v", err)
	}

	if stage != models.StageSynthesize {
		t.Errorf("Expected stage %s, got %s", models.StageSynthesize, stage)
	}

	missing, err := cache.GetRunStage(ctx, "run-unknown")
	if err != nil {
		t.Fatalf("GetRunStage for missing run should not error: %v", err)
	}

	if missing != "" {
		t.Errorf("Missing run stage should be empty, got %s", missing)
	}
}

func TestCache_ProfileOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	profile := &models.VoiceProfile{
		UserID:    "alice",
		Completed: []int{0, 1, 2},
		Total:     40,
		Status:    models.VoiceStatusIncomplete,
	}

	if err := cache.SetProfile(ctx, profile, time.Minute); err != nil {
		t.Fatalf("SetProfile failed: %v", err)
	}

	retrieved, err := cache.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}

	if retrieved == nil {
		t.Fatal("Retrieved profile should not be nil")
	}

	if len(retrieved.Completed) != 3 {
		t.Errorf("Expected 3 completed samples, got %d", len(retrieved.Completed))
	}

	if err := cache.DeleteProfile(ctx, "alice"); err != nil {
		t.Fatalf("DeleteProfile failed: %v", err)
	}

	deleted, err := cache.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("GetProfile after delete should not error: %v", err)
	}

	if deleted != nil {
		t.Error("Deleted profile should return nil")
	}
}

func TestCache_RateLimit(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	// First three requests within the limit
	for i := 0; i < 3; i++ {
		allowed, err := cache.CheckRateLimit(ctx, "user:alice", 3, time.Minute)
		if err != nil {
			t.Fatalf("CheckRateLimit failed: %v", err)
		}
		if !allowed {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// Fourth request exceeds the limit
	allowed, err := cache.CheckRateLimit(ctx, "user:alice", 3, time.Minute)
	if err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if allowed {
		t.Error("Fourth request should be rejected")
	}

	// Window expiry resets the counter
	mr.FastForward(2 * time.Minute)

	allowed, err = cache.CheckRateLimit(ctx, "user:alice", 3, time.Minute)
	if err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if !allowed {
		t.Error("Request after window expiry should be allowed")
	}
}
