package gemini

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joseph-ayodele/hr-extractor/internal/llm"
)

const (
	provider       = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
)

// Config for the Gemini client. An empty APIKey falls back to GEMINI_API_KEY, then API_KEY.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	for _, env := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if c.APIKey != "" {
			break
		}
		c.APIKey = os.Getenv(env)
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.1
	}
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
	return c
}

// Client extracts employee records through models/{model}:generateContent.
type Client struct {
	cfg    Config
	poster llm.JSONPoster
	log    *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:    cfg,
		poster: llm.JSONPoster{Client: &http.Client{Timeout: cfg.Timeout}, Provider: provider, Logger: logger},
		log:    logger,
	}
}
