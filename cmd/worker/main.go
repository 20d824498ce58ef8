package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sjpark-dev/dublate/internal/cache"
	"github.com/sjpark-dev/dublate/internal/config"
	"github.com/sjpark-dev/dublate/internal/database"
	"github.com/sjpark-dev/dublate/internal/logging"
	"github.com/sjpark-dev/dublate/internal/media"
	"github.com/sjpark-dev/dublate/internal/metrics"
	"github.com/sjpark-dev/dublate/internal/pipeline"
	"github.com/sjpark-dev/dublate/internal/queue"
	"github.com/sjpark-dev/dublate/internal/storage"
	"github.com/sjpark-dev/dublate/internal/stt"
	"github.com/sjpark-dev/dublate/internal/tracing"
	"github.com/sjpark-dev/dublate/internal/translate"
	"github.com/sjpark-dev/dublate/internal/tts"
	"github.com/sjpark-dev/dublate/internal/voice"
	"github.com/sjpark-dev/dublate/pkg/models"
)

// Worker consumes dubbing runs and executes the pipeline for each one.
type Worker struct {
	id       string
	repo     *database.Repository
	storage  *storage.Storage
	cache    *cache.Cache
	pipeline *pipeline.Service
	tempDir  string
	logger   *logging.Logger
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

	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	logger = logger.WithWorkerID(workerID)

	// Initialize tracing
	if endpoint := os.Getenv("JAEGER_ENDPOINT"); endpoint != "" {
		_, closer, err := tracing.InitTracer("dublate-worker", endpoint)
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

	for _, dir := range []string{cfg.Pipeline.TempDir, cfg.Pipeline.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	// Assemble the pipeline
	ffmpeg := media.NewFFmpeg(cfg.Pipeline.FFmpegPath, cfg.Pipeline.FFprobePath)
	registry := voice.NewRegistry(cfg.Pipeline.VoiceDir, cfg.Pipeline.MinTrainingSamples)

	svc := pipeline.NewService(
		media.NewDownloader(cfg.Pipeline.YtDlpPath),
		ffmpeg,
		stt.New(cfg.STT),
		translate.New(cfg.Translate, redisCache),
		tts.New(cfg.TTS),
		media.NewAssembler(ffmpeg, cfg.Pipeline.TempDir),
		registry,
		cfg.Pipeline.TempDir,
		cfg.Pipeline.OutputDir,
		cfg.Pipeline.MaxParallelSegments,
		logger,
	)

	worker := &Worker{
		id:       workerID,
		repo:     repo,
		storage:  stor,
		cache:    redisCache,
		pipeline: svc,
		tempDir:  cfg.Pipeline.TempDir,
		logger:   logger,
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	// Start consuming runs
	logger.Info("Worker started, waiting for runs...")
	if err := q.ConsumeRuns(ctx, func(run *models.Run) error {
		return worker.process(ctx, run)
	}); err != nil {
		logger.Fatalf("Failed to consume runs: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("Worker stopped")
}

// process executes one run. A nil return acks the message; requeue-worthy
// failures return an error.
func (w *Worker) process(ctx context.Context, run *models.Run) error {
	log := w.logger.WithRunID(run.ID)
	log.Info("Processing run")

	// A cancel that raced the dispatch wins: a cancelled run is acked and
	// dropped without touching any backend.
	current, err := w.repo.GetRun(ctx, run.ID)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			log.Warn("Run vanished before pickup, dropping")
			return nil
		}
		return err
	}
	if current.Status == models.RunStatusCancelled {
		log.Info("Run was cancelled before pickup, dropping")
		return nil
	}

	if err := w.repo.MarkRunStarted(ctx, run.ID, w.id); err != nil {
		log.WithError(err).Warn("Run not startable, dropping")
		return nil
	}

	metrics.RunsInProgress.Inc()
	defer metrics.RunsInProgress.Dec()
	started := time.Now()

	// Uploaded sources live in object storage; fetch a local copy for the
	// pipeline. URL sources are fetched by the pipeline itself.
	cleanup := func() {}
	if run.SourceURL == "" && run.SourceFile != "" {
		localPath := filepath.Join(w.tempDir, fmt.Sprintf("src-%s%s", run.ID, filepath.Ext(run.SourceFile)))
		if err := w.storage.DownloadFile(ctx, run.SourceFile, localPath); err != nil {
			w.fail(ctx, run, models.StageIngest, fmt.Errorf("failed to fetch source: %w", err), started)
			return nil
		}
		run.SourceFile = localPath
		cleanup = func() { os.Remove(localPath) }
	}
	defer cleanup()

	outcome, err := w.pipeline.Execute(ctx, run)
	if err != nil {
		var perr *pipeline.PipelineError
		stage := models.StageIngest
		if errors.As(err, &perr) {
			stage = perr.Stage
		}
		w.fail(ctx, run, stage, err, started)
		return nil
	}

	// Push the dubbed file to object storage so the API can serve it.
	objectKey := fmt.Sprintf("outputs/%s/%s", run.ID, filepath.Base(outcome.OutputPath))
	if err := w.storage.UploadFile(ctx, objectKey, outcome.OutputPath); err != nil {
		w.fail(ctx, run, models.StageAssemble, fmt.Errorf("failed to store output: %w", err), started)
		return nil
	}

	if err := w.repo.CompleteRun(ctx, run.ID, outcome.Status, outcome.Language, objectKey, "", outcome.Report); err != nil {
		log.WithError(err).Error("Failed to record run completion")
		return err
	}

	output := &models.Output{
		RunID:    run.ID,
		Filename: filepath.Base(outcome.OutputPath),
		Path:     objectKey,
	}
	if info, err := os.Stat(outcome.OutputPath); err == nil {
		output.Size = info.Size()
	}
	if err := w.repo.CreateOutput(ctx, output); err != nil {
		log.WithError(err).Warn("Failed to record output")
	}

	w.invalidateRun(ctx, run.ID)
	metrics.RecordRunCompleted(outcome.Status, time.Since(started))
	log.WithField("status", outcome.Status).Info("Run processed")
	return nil
}

// fail records a terminal run failure. Failures are acked, not requeued: a
// deterministic pipeline error would fail the same way on every redelivery.
func (w *Worker) fail(ctx context.Context, run *models.Run, stage string, err error, started time.Time) {
	log := w.logger.WithRunID(run.ID).WithStage(stage)
	log.WithError(err).Error("Run failed")

	if dberr := w.repo.CompleteRun(ctx, run.ID, models.RunStatusFailed, "", "", err.Error(), nil); dberr != nil {
		log.WithError(dberr).Error("Failed to record run failure")
	}

	w.invalidateRun(ctx, run.ID)
	metrics.RecordRunCompleted(models.RunStatusFailed, time.Since(started))
}

func (w *Worker) invalidateRun(ctx context.Context, runID string) {
	if err := w.cache.DeleteRun(ctx, runID); err != nil {
		w.logger.WithRunID(runID).WithError(err).Warn("Failed to invalidate run cache")
	}
}
