package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Logging   LoggingConfig
	STT       STTConfig
	Translate TranslateConfig
	TTS       TTSConfig
	Pipeline  PipelineConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// STTConfig holds speech-to-text backend configuration
type STTConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// TranslateConfig holds translation backend configuration
type TranslateConfig struct {
	Endpoint string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// TTSConfig holds voice-cloning synthesis backend configuration
type TTSConfig struct {
	Endpoint string
	Device   string
	Timeout  time.Duration
}

// PipelineConfig holds dubbing pipeline configuration
type PipelineConfig struct {
	TempDir             string
	OutputDir           string
	VoiceDir            string
	FFmpegPath          string
	FFprobePath         string
	YtDlpPath           string
	MaxParallelSegments int
	MinTrainingSamples  int
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "dublate")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "dubs")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// STT defaults
	viper.SetDefault("stt.endpoint", "http://localhost:9090")
	viper.SetDefault("stt.model", "base")
	viper.SetDefault("stt.timeout", "10m")

	// Translate defaults
	viper.SetDefault("translate.endpoint", "https://translate.googleapis.com")
	viper.SetDefault("translate.timeout", "30s")
	viper.SetDefault("translate.cacheTTL", "24h")

	// TTS defaults
	viper.SetDefault("tts.endpoint", "http://localhost:9091")
	viper.SetDefault("tts.device", "cpu")
	viper.SetDefault("tts.timeout", "5m")

	// Pipeline defaults
	viper.SetDefault("pipeline.tempDir", "/tmp/dublate")
	viper.SetDefault("pipeline.outputDir", "data/outputs")
	viper.SetDefault("pipeline.voiceDir", "data/voices")
	viper.SetDefault("pipeline.ffmpegPath", "ffmpeg")
	viper.SetDefault("pipeline.ffprobePath", "ffprobe")
	viper.SetDefault("pipeline.ytDlpPath", "yt-dlp")
	viper.SetDefault("pipeline.maxParallelSegments", 4)
	viper.SetDefault("pipeline.minTrainingSamples", 30)
}
