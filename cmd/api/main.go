package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sjpark-dev/dublate/internal/cache"
	"github.com/sjpark-dev/dublate/internal/config"
	"github.com/sjpark-dev/dublate/internal/database"
	"github.com/sjpark-dev/dublate/internal/logging"
	"github.com/sjpark-dev/dublate/internal/media"
	"github.com/sjpark-dev/dublate/internal/middleware"
	"github.com/sjpark-dev/dublate/internal/queue"
	"github.com/sjpark-dev/dublate/internal/storage"
	"github.com/sjpark-dev/dublate/internal/stt"
	"github.com/sjpark-dev/dublate/internal/tracing"
	"github.com/sjpark-dev/dublate/internal/translate"
	"github.com/sjpark-dev/dublate/internal/voice"
)

type API struct {
	repo        *database.Repository
	storage     *storage.Storage
	queue       *queue.Queue
	cache       *cache.Cache
	registry    *voice.Registry
	transcriber *stt.Client
	translator  *translate.Client
	ffmpeg      *media.FFmpeg
	tempDir     string
	logger      *logging.Logger
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.NewDefault().Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logging.NewDefault().Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize tracing
	if endpoint := os.Getenv("JAEGER_ENDPOINT"); endpoint != "" {
		_, closer, err := tracing.InitTracer("dublate-api", endpoint)
		if err != nil {
			logger.Warnf("Failed to initialize tracer: %v", err)
		} else {
			defer closer.Close()
		}
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize storage
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	// Initialize cache
	redisCache, err := cache.NewCache(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	api := &API{
		repo:        repo,
		storage:     stor,
		queue:       q,
		cache:       redisCache,
		registry:    voice.NewRegistry(cfg.Pipeline.VoiceDir, cfg.Pipeline.MinTrainingSamples),
		transcriber: stt.New(cfg.STT),
		translator:  translate.New(cfg.Translate, redisCache),
		ffmpeg:      media.NewFFmpeg(cfg.Pipeline.FFmpegPath, cfg.Pipeline.FFprobePath),
		tempDir:     cfg.Pipeline.TempDir,
		logger:      logger,
	}

	if err := os.MkdirAll(cfg.Pipeline.TempDir, 0755); err != nil {
		logger.Fatalf("Failed to create temp directory: %v", err)
	}

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(api.logger))
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(20, 40)))

	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Voice profiles
		v := v1.Group("/voice")
		{
			v.GET("/prompts", api.listPrompts)
			v.POST("/users/:user_id/samples", api.uploadSample)
			v.GET("/users/:user_id/progress", api.getProgress)
			v.POST("/users/:user_id/train", api.trainProfile)
			v.DELETE("/users/:user_id", api.resetProfile)
			v.GET("/profiles", api.listProfiles)
		}

		// Translation
		tr := v1.Group("/translate")
		{
			tr.GET("/languages", api.listLanguages)
			tr.POST("/text", api.translateText)
			tr.POST("/segments", api.translateSegments)
		}

		// Transcription
		v1.POST("/transcriptions", api.createTranscription)

		// Runs
		r := v1.Group("/runs")
		{
			r.POST("", api.createRun)
			r.GET("/:id", api.getRun)
			r.GET("", api.listRuns)
			r.POST("/:id/cancel", api.cancelRun)
		}

		// Outputs
		v1.GET("/outputs", api.listOutputs)
	}

	return router
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	if err := api.cache.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
