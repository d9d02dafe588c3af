package config

import (
	"time"

	redisclient "github.com/vietddude/recall/internal/infra/redis"
	"github.com/vietddude/recall/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Memory   MemoryConfig       `yaml:"memory"`
	Insights InsightsConfig     `yaml:"insights"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// InsightsConfig holds settings for the external analysis API.
type InsightsConfig struct {
	URL     string        `yaml:"url"` // empty disables sentiment analysis
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// MemoryConfig holds memory-service settings.
type MemoryConfig struct {
	ContextLimit int           `yaml:"context_limit"` // messages per conversation context
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	MaxRetries   int           `yaml:"max_retries"`
}
