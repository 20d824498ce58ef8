package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Downloader wraps yt-dlp for resolving remote media URLs to local files.
type Downloader struct {
	ytDlpPath string
}

// NewDownloader creates a new downloader
func NewDownloader(ytDlpPath string) *Downloader {
	return &Downloader{ytDlpPath: ytDlpPath}
}

// Download fetches the media at url into destDir and returns the local path.
// The container is forced to mp4 so the downstream probe and mux steps see a
// predictable format.
func (d *Downloader) Download(ctx context.Context, url, destDir string) (string, error) {
	outputTemplate := filepath.Join(destDir, "source.%(ext)s")

	args := []string{
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"-o", outputTemplate,
		"--no-playlist",
		"--print", "after_move:filepath",
		url,
	}

	cmd := exec.CommandContext(ctx, d.ytDlpPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("download failed: %w, stderr: %s", err, stderr.String())
	}

	path := strings.TrimSpace(stdout.String())
	if path == "" {
		// Older yt-dlp versions do not support --print after_move
		path = filepath.Join(destDir, "source.mp4")
	}

	return path, nil
}
