package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		DatabasePath:    "/tmp/test.db",
		SECUserAgent:    "tenkdelta admin@example.com",
		AnthropicAPIKey: "sk-test",
		AnthropicModel:  "claude-sonnet-4-20250514",
		LLMProvider:     "anthropic",
		CacheWindowDays: 30,
		JobTimeout:      5 * time.Minute,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(_ *Config) {}, wantErr: false},
		{name: "missing user agent", mutate: func(c *Config) { c.SECUserAgent = "" }, wantErr: true},
		{name: "missing api key for anthropic", mutate: func(c *Config) { c.AnthropicAPIKey = "" }, wantErr: true},
		{name: "mock provider needs no key", mutate: func(c *Config) {
			c.LLMProvider = "mock"
			c.AnthropicAPIKey = ""
		}, wantErr: false},
		{name: "negative cache window", mutate: func(c *Config) { c.CacheWindowDays = -1 }, wantErr: true},
		{name: "zero job timeout", mutate: func(c *Config) { c.JobTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_CacheWindow(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 30*24*time.Hour, cfg.CacheWindow())
}

func TestExpandPath(t *testing.T) {
	t.Setenv("TENKDELTA_TEST_DIR", "/var/data")

	assert.Equal(t, "/var/data/app.db", ExpandPath("$TENKDELTA_TEST_DIR/app.db"))
	assert.Equal(t, "", ExpandPath(""))
	assert.NotContains(t, ExpandPath("~/data/app.db"), "~")
}
