package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the source media could not be fetched or read.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNoAudioStream means the source media carries no audio stream.
	ErrNoAudioStream = errors.New("no audio stream")

	// ErrEmptyTranscript means transcription produced no usable segments.
	ErrEmptyTranscript = errors.New("empty transcript")

	// ErrAllSegmentsFailed means no segment survived a fan-out stage, so there
	// is nothing left worth assembling.
	ErrAllSegmentsFailed = errors.New("all segments failed")
)

// PipelineError is a fatal, run-level failure tagged with the stage that
// produced it. Per-segment failures never surface as a PipelineError; they
// land in the run's segment report instead.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Err: err}
}
