// Package config provides typed application configuration loaded from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tenkdelta/tenkdelta/internal/common"
)

// Config is the fully resolved application configuration.
type Config struct {
	ListenAddr      string
	DatabasePath    string
	SECUserAgent    string
	AnthropicAPIKey string
	AnthropicModel  string
	LLMProvider     string
	CallbackURL     string
	LogLevel        string
	LogFormat       string
	JobTimeout      time.Duration
	CacheWindowDays int
	RequestsPerMin  int
}

// SetDefaults registers the default values on the global viper instance.
// Call once before Load, after flag binding.
func SetDefaults() {
	viper.SetDefault("server.listen_addr", ":8080")
	viper.SetDefault("database.path", "~/.local/share/tenkdelta/tenkdelta.db")
	viper.SetDefault("sec.user_agent", "")
	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.model", "claude-sonnet-4-20250514")
	viper.SetDefault("llm.requests_per_minute", 50)
	viper.SetDefault("reports.cache_window_days", 30)
	viper.SetDefault("worker.job_timeout", "5m")
	viper.SetDefault("worker.callback_url", "")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// Load reads the resolved configuration out of viper and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      viper.GetString("server.listen_addr"),
		DatabasePath:    ExpandPath(viper.GetString("database.path")),
		SECUserAgent:    viper.GetString("sec.user_agent"),
		AnthropicAPIKey: viper.GetString("llm.api_key"),
		AnthropicModel:  viper.GetString("llm.model"),
		LLMProvider:     viper.GetString("llm.provider"),
		CallbackURL:     viper.GetString("worker.callback_url"),
		CacheWindowDays: viper.GetInt("reports.cache_window_days"),
		JobTimeout:      viper.GetDuration("worker.job_timeout"),
		RequestsPerMin:  viper.GetInt("llm.requests_per_minute"),
		LogLevel:        viper.GetString("logging.level"),
		LogFormat:       viper.GetString("logging.format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for required and malformed values.
func (c *Config) Validate() error {
	if c.SECUserAgent == "" {
		return fmt.Errorf("sec.user_agent is required (EDGAR rejects anonymous clients): %w", common.ErrMissingConfig)
	}
	if c.LLMProvider == "anthropic" && c.AnthropicAPIKey == "" {
		return fmt.Errorf("llm.api_key is required for the anthropic provider: %w", common.ErrMissingConfig)
	}
	if c.CacheWindowDays < 0 {
		return fmt.Errorf("reports.cache_window_days must not be negative: %w", common.ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("worker.job_timeout must be positive: %w", common.ErrInvalidConfig)
	}
	return nil
}

// CacheWindow returns the report freshness window as a duration.
func (c *Config) CacheWindow() time.Duration {
	return time.Duration(c.CacheWindowDays) * 24 * time.Hour
}

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
