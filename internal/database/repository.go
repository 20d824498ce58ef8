package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sjpark-dev/dublate/pkg/models"
)

// ErrRunNotFound means no run with the given ID exists.
var ErrRunNotFound = errors.New("run not found")

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks if the backing database is healthy
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Runs

// CreateRun creates a new run record
func (r *Repository) CreateRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}

	query := `
		INSERT INTO runs (id, user_id, source_url, source_file, target_lang, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		run.ID, run.UserID, run.SourceURL, run.SourceFile, run.TargetLang, run.Status,
	).Scan(&run.CreatedAt, &run.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (r *Repository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	var report models.ReportList

	query := `
		SELECT id, user_id, source_url, source_file, target_lang, status,
		       detected_language, output_path, error_msg, worker_id, report,
		       started_at, completed_at, created_at, updated_at
		FROM runs
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.UserID, &run.SourceURL, &run.SourceFile, &run.TargetLang, &run.Status,
		&run.Language, &run.OutputPath, &run.ErrorMsg, &run.WorkerID, &report,
		&run.StartedAt, &run.CompletedAt, &run.CreatedAt, &run.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Report = report
	return &run, nil
}

// UpdateRunStatus updates a run's status and, when the run reaches a
// terminal state, its completion timestamp.
func (r *Repository) UpdateRunStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE runs
		SET status = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $2 IN ('completed', 'partial', 'failed', 'cancelled') THEN NOW() ELSE completed_at END
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// MarkRunStarted records the worker that picked the run up.
func (r *Repository) MarkRunStarted(ctx context.Context, id, workerID string) error {
	query := `
		UPDATE runs
		SET status = $2, worker_id = $3, started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('cancelled', 'completed', 'partial', 'failed')
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, models.RunStatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s not in a startable state", ErrRunNotFound, id)
	}

	return nil
}

// CompleteRun records the outcome of a finished run.
func (r *Repository) CompleteRun(ctx context.Context, id, status, language, outputPath, errorMsg string, report models.ReportList) error {
	query := `
		UPDATE runs
		SET status = $2, detected_language = $3, output_path = $4, error_msg = $5,
		    report = $6, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, status, language, outputPath, errorMsg, report)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// CancelRun cancels a run that has not been picked up by a worker yet.
// Returns ErrRunNotFound when the run does not exist or already started.
func (r *Repository) CancelRun(ctx context.Context, id string) error {
	query := `
		UPDATE runs
		SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'queued')
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, models.RunStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s not in a cancellable state", ErrRunNotFound, id)
	}

	return nil
}

// ListRuns retrieves runs for a user with pagination
func (r *Repository) ListRuns(ctx context.Context, userID string, limit, offset int) ([]*models.Run, error) {
	query := `
		SELECT id, user_id, source_url, source_file, target_lang, status,
		       detected_language, output_path, error_msg, worker_id, report,
		       started_at, completed_at, created_at, updated_at
		FROM runs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		var run models.Run
		var report models.ReportList
		err := rows.Scan(
			&run.ID, &run.UserID, &run.SourceURL, &run.SourceFile, &run.TargetLang, &run.Status,
			&run.Language, &run.OutputPath, &run.ErrorMsg, &run.WorkerID, &report,
			&run.StartedAt, &run.CompletedAt, &run.CreatedAt, &run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Report = report
		runs = append(runs, &run)
	}

	return runs, nil
}

// Outputs

// CreateOutput records a produced output file
func (r *Repository) CreateOutput(ctx context.Context, output *models.Output) error {
	if output.ID == "" {
		output.ID = uuid.New().String()
	}

	query := `
		INSERT INTO outputs (id, run_id, filename, path, size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		output.ID, output.RunID, output.Filename, output.Path, output.Size,
	).Scan(&output.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	return nil
}

// ListOutputs retrieves outputs for a run
func (r *Repository) ListOutputs(ctx context.Context, runID string) ([]*models.Output, error) {
	query := `
		SELECT id, run_id, filename, path, size, created_at
		FROM outputs
		WHERE run_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}
	defer rows.Close()

	var outputs []*models.Output
	for rows.Next() {
		var output models.Output
		if err := rows.Scan(&output.ID, &output.RunID, &output.Filename, &output.Path, &output.Size, &output.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan output: %w", err)
		}
		outputs = append(outputs, &output)
	}

	return outputs, nil
}

// StaleRuns returns runs stuck in processing longer than maxAge.
func (r *Repository) StaleRuns(ctx context.Context, maxAge time.Duration) ([]*models.Run, error) {
	query := `
		SELECT id, user_id, source_url, source_file, target_lang, status,
		       detected_language, output_path, error_msg, worker_id, report,
		       started_at, completed_at, created_at, updated_at
		FROM runs
		WHERE status = $1 AND started_at < NOW() - $2::interval
	`

	interval := fmt.Sprintf("%d seconds", int(maxAge.Seconds()))
	rows, err := r.db.Pool.Query(ctx, query, models.RunStatusProcessing, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		var run models.Run
		var report models.ReportList
		err := rows.Scan(
			&run.ID, &run.UserID, &run.SourceURL, &run.SourceFile, &run.TargetLang, &run.Status,
			&run.Language, &run.OutputPath, &run.ErrorMsg, &run.WorkerID, &report,
			&run.StartedAt, &run.CompletedAt, &run.CreatedAt, &run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Report = report
		runs = append(runs, &run)
	}

	return runs, nil
}
