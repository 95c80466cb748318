package relayserver

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the relay settings.
type Config struct {
	// Listen is the TCP address the HTTP server binds to.
	Listen string `yaml:"listen"`

	// DatabasePath is the SQLite database file. Its parent directory must
	// exist.
	DatabasePath string `yaml:"database"`

	// PoolSize is the number of SQLite connections. Defaults to 4.
	PoolSize int `yaml:"pool_size"`

	// FeedBuffer is how many events may queue for one feed subscriber before
	// it is disconnected.
	FeedBuffer int `yaml:"feed_buffer"`

	// WriteTimeout bounds a single feed frame write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Listen:       ":8080",
		DatabasePath: "roomrelay.db",
		PoolSize:     4,
		FeedBuffer:   64,
		WriteTimeout: 10 * time.Second,
		LogFormat:    "text",
		LogLevel:     "info",
	}
}

// LoadConfig reads a YAML file over the defaults. Fields absent from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database is required")
	}
	if c.FeedBuffer <= 0 {
		return fmt.Errorf("feed_buffer must be positive, got %d", c.FeedBuffer)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (supported: text, json)", c.LogFormat)
	}
	return nil
}
