package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SegmentClip pairs a transcript segment's timing with its synthesized audio
// clip. Path is empty when synthesis for the segment failed.
type SegmentClip struct {
	ID    int
	Start float64
	End   float64
	Path  string
}

// audioTool is the subset of FFmpeg operations the assembler needs. Kept
// narrow so tests can substitute a fake and assert on call ordering.
type audioTool interface {
	WriteSilence(ctx context.Context, outputPath string, seconds float64) error
	ConcatAudio(ctx context.Context, inputPaths []string, outputPath string) error
	Mux(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// Assembler merges per-segment audio clips into one track and muxes it
// against the original picture stream.
type Assembler struct {
	tool    audioTool
	workDir string
}

// NewAssembler creates a new assembler writing intermediate files to workDir
func NewAssembler(tool audioTool, workDir string) *Assembler {
	return &Assembler{tool: tool, workDir: workDir}
}

// AssemblyError is a fatal failure to produce the final output.
type AssemblyError struct {
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly failed: %v", e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// Assemble concatenates clips in segment ID order and muxes the result
// against videoPath's picture stream. Segments without a clip get silence of
// their original duration so the output stays aligned with the video.
func (a *Assembler) Assemble(ctx context.Context, videoPath string, clips []SegmentClip, outputPath string) error {
	if len(clips) == 0 {
		return &AssemblyError{Err: fmt.Errorf("no segments to assemble")}
	}

	ordered := make([]SegmentClip, len(clips))
	copy(ordered, clips)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	workDir, err := os.MkdirTemp(a.workDir, "assemble-*")
	if err != nil {
		return &AssemblyError{Err: fmt.Errorf("failed to create work directory: %w", err)}
	}
	defer os.RemoveAll(workDir)

	trackPaths := make([]string, 0, len(ordered))
	for _, clip := range ordered {
		if clip.Path != "" {
			trackPaths = append(trackPaths, clip.Path)
			continue
		}

		// Missing clip: substitute silence covering the segment's original
		// duration to avoid audio/video desync.
		silencePath := filepath.Join(workDir, fmt.Sprintf("silence_%d.wav", clip.ID))
		if err := a.tool.WriteSilence(ctx, silencePath, clip.End-clip.Start); err != nil {
			return &AssemblyError{Err: fmt.Errorf("silence for segment %d: %w", clip.ID, err)}
		}
		trackPaths = append(trackPaths, silencePath)
	}

	combinedPath := filepath.Join(workDir, "combined.wav")
	if err := a.tool.ConcatAudio(ctx, trackPaths, combinedPath); err != nil {
		return &AssemblyError{Err: err}
	}

	if err := a.tool.Mux(ctx, videoPath, combinedPath, outputPath); err != nil {
		return &AssemblyError{Err: err}
	}

	return nil
}
