// Package config loads the wayfind configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for wayfind
type Config struct {
	Database string        `yaml:"database"`
	Server   ServerConfig  `yaml:"server"`
	Dify     DifyConfig    `yaml:"dify"`
	Journey  JourneyConfig `yaml:"journey"`
	Logging  LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// ShutdownTimeout bounds graceful shutdown, e.g. "10s"
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DifyConfig configures the answer and topic services. Each workflow app has its own key.
type DifyConfig struct {
	BaseURL    string `yaml:"base_url"`
	User       string `yaml:"user"`
	Timeout    string `yaml:"timeout"`
	ExploreKey string `yaml:"explore_key"`
	OptionsKey string `yaml:"options_key"`
	CheckKey   string `yaml:"check_key"`
	ExpandKey  string `yaml:"expand_key"`
}

// JourneyConfig tunes journey progression
type JourneyConfig struct {
	// RevealDelay is the pause between an answer and the next node appearing
	RevealDelay string `yaml:"reveal_delay"`
	// AutoExtend creates the next exploration when a dialog completes and no node is hidden
	AutoExtend   bool    `yaml:"auto_extend"`
	GridSize     int     `yaml:"grid_size"`
	CanvasWidth  float64 `yaml:"canvas_width"`
	CanvasHeight float64 `yaml:"canvas_height"`
	RecentLimit  int     `yaml:"recent_limit"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultPath returns ~/.wayfind/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".wayfind", "config.yaml")
	}
	return filepath.Join(home, ".wayfind", "config.yaml")
}

// DefaultDatabase returns ~/.wayfind/wayfind.db
func DefaultDatabase() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wayfind.db"
	}
	return filepath.Join(home, ".wayfind", "wayfind.db")
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Database: DefaultDatabase(),
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: "10s",
		},
		Dify: DifyConfig{
			BaseURL: "https://api.dify.ai",
			User:    "wayfind-user",
			Timeout: "60s",
		},
		Journey: JourneyConfig{
			RevealDelay:  "2s",
			AutoExtend:   true,
			GridSize:     10,
			CanvasWidth:  800,
			CanvasHeight: 600,
			RecentLimit:  5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults and applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WAYFIND_DB"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("WAYFIND_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("WAYFIND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DIFY_BASE_URL"); v != "" {
		c.Dify.BaseURL = v
	}
	if v := os.Getenv("DIFY_EXPLORE_KEY"); v != "" {
		c.Dify.ExploreKey = v
	}
	if v := os.Getenv("DIFY_OPTIONS_KEY"); v != "" {
		c.Dify.OptionsKey = v
	}
	if v := os.Getenv("DIFY_CHECK_KEY"); v != "" {
		c.Dify.CheckKey = v
	}
	if v := os.Getenv("DIFY_EXPAND_KEY"); v != "" {
		c.Dify.ExpandKey = v
	}
}

var validLevels = []string{"debug", "info", "warn", "error"}

// Validate checks values the rest of the program relies on
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Journey.GridSize <= 0 {
		return fmt.Errorf("journey.grid_size must be positive, got %d", c.Journey.GridSize)
	}
	if c.Journey.CanvasWidth <= 0 || c.Journey.CanvasHeight <= 0 {
		return fmt.Errorf("journey canvas size must be positive")
	}
	for _, d := range []struct{ name, value string }{
		{"journey.reveal_delay", c.Journey.RevealDelay},
		{"dify.timeout", c.Dify.Timeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
	}
	level := strings.ToLower(c.Logging.Level)
	valid := false
	for _, l := range validLevels {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, validLevels)
	}
	return nil
}

// DifyConfigured reports whether every Dify app key is set
func (c *Config) DifyConfigured() bool {
	d := c.Dify
	return d.ExploreKey != "" && d.OptionsKey != "" && d.CheckKey != "" && d.ExpandKey != ""
}

// GetRevealDelay returns the reveal delay as a duration
func (c *Config) GetRevealDelay() time.Duration {
	return parseDuration(c.Journey.RevealDelay, 2*time.Second)
}

// GetDifyTimeout returns the Dify request timeout as a duration
func (c *Config) GetDifyTimeout() time.Duration {
	return parseDuration(c.Dify.Timeout, 60*time.Second)
}

// GetShutdownTimeout returns the server shutdown timeout as a duration
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
