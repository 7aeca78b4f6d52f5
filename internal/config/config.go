package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// LLMAPIKey is the NVIDIA API credential. It may be empty; a missing key
	// surfaces as a failure on each submitted message, not at startup.
	LLMAPIKey        string        `env:"NVIDIA_API_KEY"`
	LLMBaseURL       string        `env:"LLM_BASE_URL" envDefault:"https://integrate.api.nvidia.com"`
	ModelCatalogPath string        `env:"MODEL_CATALOG_PATH"`
	APIPort          string        `env:"API_PORT" envDefault:"9000"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"text"`
	RawLogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	SessionIdle      time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	MaxSessions      int           `env:"SESSION_MAX" envDefault:"1000"`
	SendHistory      bool          `env:"SEND_HISTORY" envDefault:"true"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"false"`

	// LogLevel is derived from RawLogLevel.
	LogLevel slog.Level
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or a parent directory, it is loaded
// first. Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	level, err := parseLevel(cfg.RawLogLevel)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	cfg.LLMBaseURL = strings.TrimRight(cfg.LLMBaseURL, "/")
	if cfg.LLMBaseURL == "" {
		return nil, fmt.Errorf("LLM_BASE_URL cannot be empty")
	}

	if cfg.SessionIdle <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TIMEOUT must be greater than 0")
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("SESSION_MAX must be greater than 0")
	}

	return cfg, nil
}

// HasCredential reports whether an API key was supplied.
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.LLMAPIKey) != ""
}

// loadDotEnv loads the first .env file found walking up from the working directory.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	return level, nil
}
