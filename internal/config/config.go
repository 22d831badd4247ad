// Package config loads and validates codegov configuration. Configuration
// comes from a YAML file with CODEGOV_* environment overrides; every
// component receives its section as an explicit handle at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all codegov configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Transform TransformConfig `yaml:"transform"`
	Redact    RedactConfig    `yaml:"redact"`
	Finops    FinopsConfig    `yaml:"finops"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// StoreConfig configures the evidence/persistence root.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// TransformConfig configures the transform engine.
type TransformConfig struct {
	TypecheckTimeout string   `yaml:"typecheck_timeout"`
	MutationTimeout  string   `yaml:"mutation_timeout"`
	ExcludeDirs      []string `yaml:"exclude_dirs"`
}

// RedactConfig configures the content sanitization pipeline.
type RedactConfig struct {
	// PolicyFile optionally adds custom policies to the built-in set.
	// The file is watched and hot-reloaded when it changes.
	PolicyFile string `yaml:"policy_file"`
}

// FinopsConfig configures the cost ledger.
type FinopsConfig struct {
	// UsageLogPath overrides where the usage log JSON is persisted.
	// Defaults to <store>/usage.json.
	UsageLogPath string `yaml:"usage_log_path"`
}

// LoggingConfig mirrors the categorized file logger options.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Name:    "codegov",
		Version: "0.1.0",
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
		},
		Store: StoreConfig{
			Path: ".codegov",
		},
		Transform: TransformConfig{
			TypecheckTimeout: "60s",
			MutationTimeout:  "5m",
			ExcludeDirs:      []string{"node_modules", "dist", "build", ".git", "target", "__pycache__"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers CODEGOV_* variables over the file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODEGOV_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CODEGOV_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("CODEGOV_POLICY_FILE"); v != "" {
		c.Redact.PolicyFile = v
	}
	if v := os.Getenv("CODEGOV_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CODEGOV_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if _, err := c.TypecheckTimeout(); err != nil {
		return fmt.Errorf("transform.typecheck_timeout: %w", err)
	}
	if _, err := c.MutationTimeout(); err != nil {
		return fmt.Errorf("transform.mutation_timeout: %w", err)
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		return fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	return nil
}

// TypecheckTimeout returns the parsed typecheck deadline.
func (c *Config) TypecheckTimeout() (time.Duration, error) {
	return parseDuration(c.Transform.TypecheckTimeout, 60*time.Second)
}

// MutationTimeout returns the parsed mutation-testing deadline.
func (c *Config) MutationTimeout() (time.Duration, error) {
	return parseDuration(c.Transform.MutationTimeout, 5*time.Minute)
}

// ShutdownTimeout returns the parsed graceful shutdown deadline.
func (c *Config) ShutdownTimeout() (time.Duration, error) {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// UsageLogPath resolves the finops usage log location.
func (c *Config) UsageLogPath() string {
	if c.Finops.UsageLogPath != "" {
		return c.Finops.UsageLogPath
	}
	return filepath.Join(c.Store.Path, "usage.json")
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}
