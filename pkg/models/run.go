package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Run represents one dubbing pipeline run: transcribe the source video,
// translate every segment, re-synthesize each one with the user's cloned
// voice and mux the result back against the original picture stream.
type Run struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	SourceURL   string          `json:"source_url,omitempty" db:"source_url"`
	SourceFile  string          `json:"source_file,omitempty" db:"source_file"`
	TargetLang  string          `json:"target_lang" db:"target_lang"`
	Status      string          `json:"status" db:"status"`
	Language    string          `json:"detected_language,omitempty" db:"detected_language"`
	OutputPath  string          `json:"output_path,omitempty" db:"output_path"`
	ErrorMsg    string          `json:"error_msg,omitempty" db:"error_msg"`
	WorkerID    string          `json:"worker_id,omitempty" db:"worker_id"`
	Report      []SegmentReport `json:"report,omitempty" db:"report"`
	StartedAt   *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// SegmentReport records the per-segment outcome of a run. A run result always
// enumerates every segment, so a partial output is never silently truncated.
type SegmentReport struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Stage string  `json:"stage,omitempty"`
	Error string  `json:"error,omitempty"`
}

// Failed reports whether the segment failed at any stage.
func (r SegmentReport) Failed() bool {
	return r.Error != ""
}

// ReportList wraps per-segment reports for database storage.
type ReportList []SegmentReport

// Value implements driver.Valuer for database storage
func (rl ReportList) Value() (driver.Value, error) {
	return json.Marshal(rl)
}

// Scan implements sql.Scanner for database retrieval
func (rl *ReportList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, rl)
}

// RunStatus constants
const (
	RunStatusPending    = "pending"
	RunStatusQueued     = "queued"
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusPartial    = "partial"
	RunStatusFailed     = "failed"
	RunStatusCancelled  = "cancelled"
)

// Pipeline stage names, in execution order.
const (
	StageIngest     = "ingest"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
	StageAssemble   = "assemble"
)
