package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the name of the client config inside the home directory.
const ConfigFile = "config.yaml"

// Config holds runtime wiring options for building the app.
type Config struct {
	// Home is the config directory, e.g. $HOME/.roomseal. Not persisted.
	Home string `yaml:"-"`

	// RelayURL is the relay base URL, e.g. http://127.0.0.1:8080.
	RelayURL string `yaml:"relay_url"`

	// InviteOrigin is the origin invite links are built on. Defaults to
	// RelayURL when empty.
	InviteOrigin string `yaml:"invite_origin,omitempty"`

	// DisplayName is used when the profile is first created.
	DisplayName string `yaml:"display_name,omitempty"`

	// RequestTimeout bounds each relay call made by a command.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the settings used when the home has no config file.
func DefaultConfig(home string) Config {
	return Config{
		Home:           home,
		RelayURL:       "http://127.0.0.1:8080",
		RequestTimeout: 15 * time.Second,
		LogLevel:       "warn",
	}
}

// LoadConfig reads <home>/config.yaml over the defaults. A missing file is
// not an error.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig(home)
	data, err := os.ReadFile(filepath.Join(home, ConfigFile))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", ConfigFile, err)
	}
	return cfg, cfg.Validate()
}

// Save writes the config to <home>/config.yaml.
func (c Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Home, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Home, ConfigFile), data, 0o600)
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.RelayURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("relay_url %q must be an http(s) URL", c.RelayURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Origin returns the origin used for invite links.
func (c Config) Origin() string {
	if c.InviteOrigin != "" {
		return c.InviteOrigin
	}
	return c.RelayURL
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
