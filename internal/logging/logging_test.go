package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/sjpark-dev/dublate/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  config.LoggingConfig
		wantErr bool
	}{
		{
			name: "JSON format to stdout",
			config: config.LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Console format to stderr",
			config: config.LoggingConfig{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "Invalid log level defaults to info",
			config: config.LoggingConfig{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	logger, err := New(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("test info message")
	logger.Debug("test debug message")
	logger.Warn("test warn message")
	logger.Error("test error message")
	logger.Infof("formatted %s", "message")

	// All methods should not panic
}

func TestLoggerWithFields(t *testing.T) {
	logger, err := New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if logger.WithField("key", "value") == nil {
		t.Error("Expected non-nil logger from WithField")
	}
	if logger.WithRunID("run-1") == nil {
		t.Error("Expected non-nil logger from WithRunID")
	}
	if logger.WithUserID("user-1") == nil {
		t.Error("Expected non-nil logger from WithUserID")
	}
	if logger.WithStage("translate") == nil {
		t.Error("Expected non-nil logger from WithStage")
	}
	if logger.WithError(errors.New("boom")) == nil {
		t.Error("Expected non-nil logger from WithError")
	}
}

func TestStructuredHelpers(t *testing.T) {
	logger := NewDefault()

	logger.LogStageEvent("run-1", "transcribe", "completed", 2*time.Second)
	logger.LogSegmentFailure("run-1", 3, "translate", errors.New("backend unreachable"))
	logger.LogToolInvocation("ffprobe", []string{"-show_streams"}, 120*time.Millisecond, nil)
	logger.LogHTTPRequest("GET", "/health", "127.0.0.1", 200, 5*time.Millisecond)

	// Structured helpers should not panic
}
