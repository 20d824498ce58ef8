package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sjpark-dev/dublate/internal/config"
	"github.com/sjpark-dev/dublate/internal/translate"
	"github.com/sjpark-dev/dublate/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Translation Cache Operations

// GetTranslation retrieves a cached translation result. A nil result with a
// nil error is a cache miss.
func (c *Cache) GetTranslation(ctx context.Context, key string) (*translate.Result, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get translation from cache: %w", err)
	}

	var result translate.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal translation: %w", err)
	}

	return &result, nil
}

// SetTranslation caches a translation result
func (c *Cache) SetTranslation(ctx context.Context, key string, result *translate.Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal translation: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Run Cache Operations

// SetRun caches run metadata
func (c *Cache) SetRun(ctx context.Context, run *models.Run, ttl time.Duration) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	key := fmt.Sprintf("run:%s", run.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetRun retrieves run metadata from cache
func (c *Cache) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	key := fmt.Sprintf("run:%s", runID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get run from cache: %w", err)
	}

	var run models.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}

// DeleteRun removes a run from cache
func (c *Cache) DeleteRun(ctx context.Context, runID string) error {
	key := fmt.Sprintf("run:%s", runID)
	return c.client.Del(ctx, key).Err()
}

// SetRunStage caches the stage a run is currently in for quick status polls
func (c *Cache) SetRunStage(ctx context.Context, runID, stage string, ttl time.Duration) error {
	key := fmt.Sprintf("run:stage:%s", runID)
	return c.client.Set(ctx, key, stage, ttl).Err()
}

// GetRunStage retrieves a run's current stage from cache
func (c *Cache) GetRunStage(ctx context.Context, runID string) (string, error) {
	key := fmt.Sprintf("run:stage:%s", runID)
	stage, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // Cache miss
		}
		return "", fmt.Errorf("failed to get run stage from cache: %w", err)
	}
	return stage, nil
}

// Voice Profile Cache Operations

// SetProfile caches a voice profile
func (c *Cache) SetProfile(ctx context.Context, profile *models.VoiceProfile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	key := fmt.Sprintf("profile:%s", profile.UserID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetProfile retrieves a voice profile from cache
func (c *Cache) GetProfile(ctx context.Context, userID string) (*models.VoiceProfile, error) {
	key := fmt.Sprintf("profile:%s", userID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get profile from cache: %w", err)
	}

	var profile models.VoiceProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return &profile, nil
}

// DeleteProfile removes a voice profile from cache
func (c *Cache) DeleteProfile(ctx context.Context, userID string) error {
	key := fmt.Sprintf("profile:%s", userID)
	return c.client.Del(ctx, key).Err()
}

// Rate Limiting Operations

// CheckRateLimit checks if a rate limit has been exceeded
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	rateLimitKey := fmt.Sprintf("ratelimit:%s", key)

	// Increment counter
	count, err := c.client.Incr(ctx, rateLimitKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := c.client.Expire(ctx, rateLimitKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry: %w", err)
		}
	}

	// Check if limit exceeded
	return count <= limit, nil
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
