// Package config provides configuration loading for speechd.
package config

import (
	"fmt"
	"time"

	"github.com/speechloop/speechd/internal/genai"
	"github.com/speechloop/speechd/internal/ratelimit"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Store     StoreConfig      `koanf:"store"`
	Gemini    GeminiConfig     `koanf:"gemini"`
	RateLimit ratelimit.Config `koanf:"ratelimit"`
	Share     ShareConfig      `koanf:"share"`
	Log       LogConfig        `koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	// Driver is "redis" or "memory". The memory driver loses all state
	// on restart and is meant for development.
	Driver   string `koanf:"driver"`
	RedisURL string `koanf:"redis_url"`
}

// GeminiConfig holds generative backend settings. An empty APIKey disables
// the backend: generation degrades to static fallback content.
type GeminiConfig struct {
	APIKey Secret `koanf:"api_key"`
	Model  string `koanf:"model"`
}

// ShareConfig holds share-link settings.
type ShareConfig struct {
	// BaseURL is the externally visible origin used in share links.
	BaseURL string `koanf:"base_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "redis"
	}
	if cfg.Store.RedisURL == "" {
		cfg.Store.RedisURL = "redis://localhost:6379"
	}

	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = genai.DefaultModel
	}

	def := ratelimit.DefaultConfig()
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = def.PerMinute
	}
	if cfg.RateLimit.PerHour == 0 {
		cfg.RateLimit.PerHour = def.PerHour
	}
	if cfg.RateLimit.PerDay == 0 {
		cfg.RateLimit.PerDay = def.PerDay
	}

	if cfg.Share.BaseURL == "" {
		cfg.Share.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Store.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("store.driver %q must be redis or memory", c.Store.Driver)
	}
	if c.Store.Driver == "redis" && c.Store.RedisURL == "" {
		return fmt.Errorf("store.redis_url is required for the redis driver")
	}

	if c.RateLimit.PerMinute < 0 || c.RateLimit.PerHour < 0 || c.RateLimit.PerDay < 0 {
		return fmt.Errorf("ratelimit budgets must be non-negative")
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q must be json or console", c.Log.Format)
	}

	return nil
}
