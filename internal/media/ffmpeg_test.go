package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSilenceValidation(t *testing.T) {
	ffmpeg := NewFFmpeg("ffmpeg", "ffprobe")

	err := ffmpeg.WriteSilence(context.Background(), "/tmp/out.wav", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")

	err = ffmpeg.WriteSilence(context.Background(), "/tmp/out.wav", -1.5)
	assert.Error(t, err)
}

func TestConcatAudioValidation(t *testing.T) {
	ffmpeg := NewFFmpeg("ffmpeg", "ffprobe")

	err := ffmpeg.ConcatAudio(context.Background(), nil, "/tmp/out.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1 audio clip")
}

func TestProbe(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping probe test in short mode")
	}

	ffmpeg := NewFFmpeg("ffmpeg", "ffprobe")

	t.Run("AudioStreams", func(t *testing.T) {
		input := "testdata/sample.mp4"
		if _, err := os.Stat(input); os.IsNotExist(err) {
			t.Skip("Test media not available")
		}

		count, err := ffmpeg.AudioStreams(context.Background(), input)
		if err == nil {
			assert.GreaterOrEqual(t, count, 0)
		}
	})

	t.Run("ExtractAudio", func(t *testing.T) {
		input := "testdata/sample.mp4"
		if _, err := os.Stat(input); os.IsNotExist(err) {
			t.Skip("Test media not available")
		}

		outputPath := filepath.Join(t.TempDir(), "audio.wav")
		err := ffmpeg.ExtractAudio(context.Background(), input, outputPath)

		if err == nil {
			_, statErr := os.Stat(outputPath)
			assert.NoError(t, statErr)
		}
	})
}
