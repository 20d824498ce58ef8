package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// FFmpeg wraps FFmpeg and FFprobe operations
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// MediaInfo holds container metadata extracted from ffprobe
type MediaInfo struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// StreamInfo holds stream information
type StreamInfo struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Probe extracts container metadata from a media file
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (*MediaInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	var info MediaInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return &info, nil
}

// AudioStreams returns the number of decodable audio streams in a media file.
// This is the cheap pre-flight check the pipeline runs before extraction so
// that audio-less sources are rejected without touching any model backend.
func (f *FFmpeg) AudioStreams(ctx context.Context, inputPath string) (int, error) {
	info, err := f.Probe(ctx, inputPath)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, stream := range info.Streams {
		if stream.CodecType == "audio" {
			count++
		}
	}

	return count, nil
}

// Duration returns the container duration in seconds.
func (f *FFmpeg) Duration(ctx context.Context, inputPath string) (float64, error) {
	info, err := f.Probe(ctx, inputPath)
	if err != nil {
		return 0, err
	}

	duration, err := strconv.ParseFloat(info.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", info.Format.Duration, err)
	}

	return duration, nil
}

// ExtractAudio extracts the first audio track as mono 16 kHz PCM WAV, the
// input format the transcription backend expects.
func (f *FFmpeg) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audio extraction failed: %w, stderr: %s", err, stderr.String())
	}

	return nil
}

// WriteSilence writes a WAV file containing only silence of the given
// duration. Used as filler for segments whose synthesis failed so the output
// track keeps its alignment with the picture stream.
func (f *FFmpeg) WriteSilence(ctx context.Context, outputPath string, seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("silence duration must be positive, got %.3f", seconds)
	}

	args := []string{
		"-f", "lavfi",
		"-i", "anullsrc=r=24000:cl=mono",
		"-t", fmt.Sprintf("%.3f", seconds),
		"-acodec", "pcm_s16le",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("silence generation failed: %w, stderr: %s", err, stderr.String())
	}

	return nil
}

// ConcatAudio concatenates audio clips in order into a single track using the
// concat demuxer. Clips are re-encoded to a uniform PCM stream so clips from
// different synthesis calls can be joined.
func (f *FFmpeg) ConcatAudio(ctx context.Context, inputPaths []string, outputPath string) error {
	if len(inputPaths) == 0 {
		return fmt.Errorf("at least 1 audio clip is required for concatenation")
	}

	concatFile, err := f.createConcatFile(inputPaths)
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(concatFile)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", concatFile,
		"-acodec", "pcm_s16le",
		"-ar", "24000",
		"-ac", "1",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audio concatenation failed: %w, stderr: %s", err, stderr.String())
	}

	return nil
}

// Mux combines the picture stream of videoPath with audioPath into
// outputPath. The original audio is discarded.
func (f *FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mux failed: %w, stderr: %s", err, stderr.String())
	}

	return nil
}

// createConcatFile creates a text file listing all inputs for the concat demuxer
func (f *FFmpeg) createConcatFile(inputs []string) (string, error) {
	tempFile, err := os.CreateTemp("", "concat_*.txt")
	if err != nil {
		return "", err
	}
	defer tempFile.Close()

	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return "", err
		}

		// Format: file '/path/to/clip.wav'
		if _, err := tempFile.WriteString(fmt.Sprintf("file '%s'\n", absPath)); err != nil {
			return "", err
		}
	}

	return tempFile.Name(), nil
}
