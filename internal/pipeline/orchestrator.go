// Package pipeline orchestrates a dubbing run end to end: ingest the source,
// transcribe it, translate and re-synthesize every segment in the user's
// cloned voice, and assemble the dubbed track back against the video.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/sjpark-dev/dublate/internal/logging"
	"github.com/sjpark-dev/dublate/internal/media"
	"github.com/sjpark-dev/dublate/internal/metrics"
	"github.com/sjpark-dev/dublate/internal/translate"
	"github.com/sjpark-dev/dublate/pkg/models"
)

// Downloader fetches remote source media into a local directory.
type Downloader interface {
	Download(ctx context.Context, url, destDir string) (string, error)
}

// MediaTool is the probing and extraction surface the pipeline needs from
// the local media toolchain.
type MediaTool interface {
	AudioStreams(ctx context.Context, inputPath string) (int, error)
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

// Transcriber turns an audio file into a timed transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*models.Transcript, error)
}

// Translator translates one piece of text.
type Translator interface {
	Translate(ctx context.Context, text, srcLang, dstLang string) (*translate.Result, error)
}

// Synthesizer renders text as speech cloned from a speaker reference sample.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, speakerRef, lang, outputPath string) error
}

// Assembler merges segment clips and muxes them against the source video.
type Assembler interface {
	Assemble(ctx context.Context, videoPath string, clips []media.SegmentClip, outputPath string) error
}

// ProfileStore resolves a user's speaker reference sample. Reference fails
// when the profile is missing or untrained, which gates the run before any
// model call is made.
type ProfileStore interface {
	Reference(userID string) (string, error)
}

// Outcome is the result of a completed Execute call. Report always
// enumerates every transcript segment, failed ones included, so a partial
// output is never silently truncated.
type Outcome struct {
	Status     string
	Language   string
	OutputPath string
	Report     models.ReportList
}

// Service runs the dubbing pipeline. All collaborators are injected so the
// stages can be faked in tests.
type Service struct {
	downloader  Downloader
	mediaTool   MediaTool
	transcriber Transcriber
	translator  Translator
	synthesizer Synthesizer
	assembler   Assembler
	profiles    ProfileStore

	tempDir     string
	outputDir   string
	maxParallel int
	logger      *logging.Logger
}

// NewService creates a pipeline service
func NewService(
	downloader Downloader,
	mediaTool MediaTool,
	transcriber Transcriber,
	translator Translator,
	synthesizer Synthesizer,
	assembler Assembler,
	profiles ProfileStore,
	tempDir, outputDir string,
	maxParallel int,
	logger *logging.Logger,
) *Service {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Service{
		downloader:  downloader,
		mediaTool:   mediaTool,
		transcriber: transcriber,
		translator:  translator,
		synthesizer: synthesizer,
		assembler:   assembler,
		profiles:    profiles,
		tempDir:     tempDir,
		outputDir:   outputDir,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// Execute runs the full pipeline for one run. A returned error is always a
// *PipelineError and means the run produced no output; per-segment failures
// are reported through the Outcome instead.
func (s *Service) Execute(ctx context.Context, run *models.Run) (*Outcome, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pipeline.execute")
	defer span.Finish()
	span.SetTag("run.id", run.ID)
	span.SetTag("run.target_lang", run.TargetLang)

	log := s.logger.WithRunID(run.ID).WithField("user_id", run.UserID)

	workDir, err := os.MkdirTemp(s.tempDir, "run-"+run.ID+"-*")
	if err != nil {
		return nil, stageErr(models.StageIngest, fmt.Errorf("failed to create work directory: %w", err))
	}
	defer os.RemoveAll(workDir)

	// The profile gate comes first: a run that can never synthesize must not
	// spend transcription or translation work.
	speakerRef, err := s.profiles.Reference(run.UserID)
	if err != nil {
		return nil, stageErr(models.StageIngest, err)
	}

	videoPath, err := s.resolveSource(ctx, run, workDir, log)
	if err != nil {
		return nil, err
	}

	streams, err := s.mediaTool.AudioStreams(ctx, videoPath)
	if err != nil {
		return nil, stageErr(models.StageIngest, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}
	if streams == 0 {
		return nil, stageErr(models.StageIngest, fmt.Errorf("%w: %s", ErrNoAudioStream, videoPath))
	}

	audioPath := filepath.Join(workDir, "audio.wav")
	if err := s.runStage(ctx, models.StageIngest, log, func(ctx context.Context) error {
		return s.mediaTool.ExtractAudio(ctx, videoPath, audioPath)
	}); err != nil {
		return nil, stageErr(models.StageIngest, err)
	}

	var transcript *models.Transcript
	if err := s.runStage(ctx, models.StageTranscribe, log, func(ctx context.Context) error {
		var err error
		transcript, err = s.transcriber.Transcribe(ctx, audioPath)
		return err
	}); err != nil {
		return nil, stageErr(models.StageTranscribe, err)
	}
	if len(transcript.Segments) == 0 {
		return nil, stageErr(models.StageTranscribe, ErrEmptyTranscript)
	}

	log.WithField("segments", len(transcript.Segments)).
		WithField("language", transcript.Language).
		Info("Transcription complete")

	srcLang := transcript.Language
	if srcLang == "" {
		srcLang = translate.LangAuto
	}

	reports := s.translateSegments(ctx, transcript.Segments, srcLang, run.TargetLang, log)
	if failedCount(reports) == len(transcript.Segments) {
		return nil, stageErr(models.StageTranslate, ErrAllSegmentsFailed)
	}

	s.synthesizeSegments(ctx, transcript.Segments, reports, speakerRef, run.TargetLang, workDir, log)
	if failedCount(reports) == len(transcript.Segments) {
		return nil, stageErr(models.StageSynthesize, ErrAllSegmentsFailed)
	}

	outputPath := filepath.Join(s.outputDir, run.ID+".mp4")
	if err := s.runStage(ctx, models.StageAssemble, log, func(ctx context.Context) error {
		return s.assembler.Assemble(ctx, videoPath, buildClips(transcript.Segments, reports), outputPath)
	}); err != nil {
		return nil, stageErr(models.StageAssemble, err)
	}

	status := models.RunStatusCompleted
	if failedCount(reports) > 0 {
		status = models.RunStatusPartial
	}

	log.WithField("status", status).
		WithField("failed_segments", failedCount(reports)).
		Info("Run finished")

	return &Outcome{
		Status:     status,
		Language:   transcript.Language,
		OutputPath: outputPath,
		Report:     reports,
	}, nil
}

// resolveSource fetches the remote source or verifies the uploaded one.
func (s *Service) resolveSource(ctx context.Context, run *models.Run, workDir string, log *logging.Logger) (string, error) {
	if run.SourceURL != "" {
		var videoPath string
		err := s.runStage(ctx, models.StageIngest, log, func(ctx context.Context) error {
			var err error
			videoPath, err = s.downloader.Download(ctx, run.SourceURL, workDir)
			return err
		})
		if err != nil {
			return "", stageErr(models.StageIngest, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
		}
		return videoPath, nil
	}

	if run.SourceFile == "" {
		return "", stageErr(models.StageIngest, fmt.Errorf("%w: run has neither source url nor file", ErrSourceUnavailable))
	}
	if _, err := os.Stat(run.SourceFile); err != nil {
		return "", stageErr(models.StageIngest, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}
	return run.SourceFile, nil
}

// translateSegments fans the transcript out across maxParallel workers and
// annotates each segment in place. The returned reports cover every segment
// in ID order.
func (s *Service) translateSegments(ctx context.Context, segments []models.Segment, srcLang, dstLang string, log *logging.Logger) models.ReportList {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pipeline.translate")
	defer span.Finish()
	span.SetTag("segments", len(segments))

	start := time.Now()
	defer func() { metrics.RecordStageDuration(models.StageTranslate, time.Since(start)) }()

	reports := make(models.ReportList, len(segments))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxParallel)
	for i := range segments {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			seg := &segments[i]
			reports[i] = models.SegmentReport{ID: seg.ID, Start: seg.Start, End: seg.End}

			result, err := s.translator.Translate(ctx, seg.SourceText, srcLang, dstLang)
			if err != nil {
				reports[i].Stage = models.StageTranslate
				reports[i].Error = err.Error()
				metrics.RecordSegmentFailure(models.StageTranslate)
				log.WithStage(models.StageTranslate).WithField("segment_id", seg.ID).WithError(err).Warn("Segment translation failed")
				return
			}
			seg.TranslatedText = result.Text
		}(i)
	}
	wg.Wait()

	return reports
}

// synthesizeSegments renders a clip for every segment that survived
// translation. Every segment in one run uses the same speaker reference so
// the cloned timbre is consistent across the output.
func (s *Service) synthesizeSegments(ctx context.Context, segments []models.Segment, reports models.ReportList, speakerRef, lang, workDir string, log *logging.Logger) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pipeline.synthesize")
	defer span.Finish()

	start := time.Now()
	defer func() { metrics.RecordStageDuration(models.StageSynthesize, time.Since(start)) }()

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxParallel)
	for i := range segments {
		if reports[i].Failed() {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			seg := &segments[i]
			clipPath := filepath.Join(workDir, fmt.Sprintf("seg_%d.wav", seg.ID))
			if err := s.synthesizer.Synthesize(ctx, seg.TranslatedText, speakerRef, lang, clipPath); err != nil {
				reports[i].Stage = models.StageSynthesize
				reports[i].Error = err.Error()
				metrics.RecordSegmentFailure(models.StageSynthesize)
				log.WithStage(models.StageSynthesize).WithField("segment_id", seg.ID).WithError(err).Warn("Segment synthesis failed")
				return
			}
			seg.AudioPath = clipPath
		}(i)
	}
	wg.Wait()
}

// runStage wraps a stage call with a span and a duration observation.
func (s *Service) runStage(ctx context.Context, stage string, log *logging.Logger, fn func(context.Context) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pipeline."+stage)
	defer span.Finish()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordStageDuration(stage, time.Since(start))

	if err != nil {
		span.SetTag("error", true)
		log.WithStage(stage).WithError(err).Error("Stage failed")
		return err
	}
	return nil
}

// buildClips pairs every segment with its clip, in segment ID order. Failed
// segments keep an empty path and the assembler substitutes silence of the
// segment's original duration.
func buildClips(segments []models.Segment, reports models.ReportList) []media.SegmentClip {
	clips := make([]media.SegmentClip, len(segments))
	for i, seg := range segments {
		clips[i] = media.SegmentClip{ID: seg.ID, Start: seg.Start, End: seg.End}
		if !reports[i].Failed() {
			clips[i].Path = seg.AudioPath
		}
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].ID < clips[j].ID })
	return clips
}

func failedCount(reports models.ReportList) int {
	n := 0
	for _, r := range reports {
		if r.Failed() {
			n++
		}
	}
	return n
}
