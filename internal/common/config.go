package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/hr-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	LLM        LLMConfig
	Pacing     PacingConfig
	Preprocess PreprocessConfig
	Export     ExportConfig
	Ingest     IngestConfig
	LogLevel   string
	EventLog   int
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	MaxUploadBytes int64
}

// LLMConfig selects and configures the extraction provider
type LLMConfig struct {
	Provider    string // gemini | openai
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// PacingConfig holds the waits between gateway calls
type PacingConfig struct {
	SuccessDelay  time.Duration
	QuotaCooldown time.Duration
	FailureDelay  time.Duration
}

// PreprocessConfig bounds the inline payload
type PreprocessConfig struct {
	MaxImageDimension int
	MaxPayloadBytes   int64
	JPEGQuality       int
}

// ExportConfig chooses where workbooks go; S3 wins when a bucket is set
type ExportConfig struct {
	Dir         string
	Filename    string
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// IngestConfig drives the inbox watcher
type IngestConfig struct {
	WatchDir   string
	AutoRun    bool
	SkipHidden bool
	Debounce   time.Duration
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini))
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":9090"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 64<<20),
		},
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getEnv("LLM_MODEL", ""),
			APIKey:      apiKeyFor(provider),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
		},
		Pacing: PacingConfig{
			SuccessDelay:  getEnvAsDuration("PACING_SUCCESS_DELAY", 12*time.Second),
			QuotaCooldown: getEnvAsDuration("PACING_QUOTA_COOLDOWN", 60*time.Second),
			FailureDelay:  getEnvAsDuration("PACING_FAILURE_DELAY", 2*time.Second),
		},
		Preprocess: PreprocessConfig{
			MaxImageDimension: getEnvAsInt("MAX_IMAGE_DIMENSION", 2048),
			MaxPayloadBytes:   getEnvAsInt64("MAX_PAYLOAD_BYTES", 20<<20),
			JPEGQuality:       getEnvAsInt("JPEG_QUALITY", 85),
		},
		Export: ExportConfig{
			Dir:         getEnv("EXPORT_DIR", "./exports"),
			Filename:    getEnv("EXPORT_FILENAME", constants.ExportFilename),
			S3Bucket:    getEnv("EXPORT_S3_BUCKET", ""),
			S3Prefix:    getEnv("EXPORT_S3_PREFIX", ""),
			S3Region:    getEnv("EXPORT_S3_REGION", "us-east-1"),
			S3Endpoint:  getEnv("EXPORT_S3_ENDPOINT", ""),
			S3PathStyle: getEnvAsBool("EXPORT_S3_PATH_STYLE", false),
		},
		Ingest: IngestConfig{
			WatchDir:   getEnv("WATCH_DIR", ""),
			AutoRun:    getEnvAsBool("WATCH_AUTORUN", true),
			SkipHidden: getEnvAsBool("WATCH_SKIP_HIDDEN", true),
			Debounce:   getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		EventLog: getEnvAsInt("EVENT_LOG_SIZE", 1000),
	}
}

// apiKeyFor prefers LLM_API_KEY, then the provider's conventional variable.
func apiKeyFor(provider string) string {
	if v := getEnv("LLM_API_KEY", ""); v != "" {
		return v
	}
	switch provider {
	case ProviderOpenAI:
		return getEnv("OPENAI_API_KEY", "")
	default:
		return getEnv("GEMINI_API_KEY", getEnv("API_KEY", ""))
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("LLM_PROVIDER", c.LLM.Provider, OneOf(ProviderGemini, ProviderOpenAI)).
		Field("LLM_API_KEY", c.LLM.APIKey, Required).
		Field("HTTP_ADDR", c.Server.HTTPAddr, Required).
		Field("PACING_SUCCESS_DELAY", c.Pacing.SuccessDelay, NonNegative).
		Field("PACING_QUOTA_COOLDOWN", c.Pacing.QuotaCooldown, NonNegative).
		Field("PACING_FAILURE_DELAY", c.Pacing.FailureDelay, NonNegative).
		Field("LLM_TEMPERATURE", float64(c.LLM.Temperature), Between(0, 2))
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	if c.Export.S3Bucket == "" && c.Export.Dir == "" {
		return NewAppError("CONFIG_ERROR", "EXPORT_DIR or EXPORT_S3_BUCKET is required", ErrInvalidInput)
	}
	return nil
}

// Redacted returns a loggable summary without secrets.
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"http_addr":      c.Server.HTTPAddr,
		"grpc_addr":      c.Server.GRPCAddr,
		"provider":       c.LLM.Provider,
		"model":          c.LLM.Model,
		"api_key_set":    c.LLM.APIKey != "",
		"success_delay":  c.Pacing.SuccessDelay.String(),
		"quota_cooldown": c.Pacing.QuotaCooldown.String(),
		"failure_delay":  c.Pacing.FailureDelay.String(),
		"export":         c.exportTarget(),
		"watch_dir":      c.Ingest.WatchDir,
	}
}

func (c *Config) exportTarget() string {
	if c.Export.S3Bucket != "" {
		return fmt.Sprintf("s3://%s/%s", c.Export.S3Bucket, strings.Trim(c.Export.S3Prefix, "/"))
	}
	return c.Export.Dir
}
