package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvDataDir   = "PROFTREE_DATA_DIR"
	EnvDefaultDB = "PROFTREE_DEFAULT_DB"
	EnvPort      = "PROFTREE_PORT"
)

// Config represents the proftree configuration.
type Config struct {
	DataDir      string        `yaml:"data_dir"`
	DefaultDB    string        `yaml:"default_db"`
	MaxTreeDepth int           `yaml:"max_tree_depth"`
	Server       ServerConfig  `yaml:"server"`
	Metrics      MetricsConfig `yaml:"metrics"`
	Ingest       IngestConfig  `yaml:"ingest"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	Gzip         *bool         `yaml:"gzip"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IngestConfig describes the dump format read by the importer.
type IngestConfig struct {
	HeaderPrefix string `yaml:"header_prefix"`
	Delimiter    string `yaml:"delimiter"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir:      ".",
		DefaultDB:    "profile.db",
		MaxTreeDepth: 8,
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
			Gzip:         boolPtr(true),
		},
		Metrics: MetricsConfig{
			Enabled: boolPtr(true),
			Path:    "/metrics",
		},
		Ingest: IngestConfig{
			HeaderPrefix: "Function Stack;",
			Delimiter:    ";",
		},
	}
}

func boolPtr(b bool) *bool { return &b }

// Load reads configuration from file, falling back to defaults, then applies
// .env and environment overrides.
// If configPath is empty, it looks for proftree.yaml in the current directory.
// Values in the config file replace defaults field by field (no deep merging).
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = "proftree.yaml"
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
		cfg.Merge(&fileCfg)
	case errors.Is(err, os.ErrNotExist):
		// No config file, use defaults
	default:
		return nil, err
	}

	// A .env next to the working directory fills unset variables only.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.DefaultDB != "" {
		c.DefaultDB = other.DefaultDB
	}
	if other.MaxTreeDepth > 0 {
		c.MaxTreeDepth = other.MaxTreeDepth
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.ReadTimeout > 0 {
		c.Server.ReadTimeout = other.Server.ReadTimeout
	}
	if other.Server.WriteTimeout > 0 {
		c.Server.WriteTimeout = other.Server.WriteTimeout
	}
	if other.Server.IdleTimeout > 0 {
		c.Server.IdleTimeout = other.Server.IdleTimeout
	}
	if other.Server.Gzip != nil {
		c.Server.Gzip = other.Server.Gzip
	}
	if other.Metrics.Enabled != nil {
		c.Metrics.Enabled = other.Metrics.Enabled
	}
	if other.Metrics.Path != "" {
		c.Metrics.Path = other.Metrics.Path
	}
	if other.Ingest.HeaderPrefix != "" {
		c.Ingest.HeaderPrefix = other.Ingest.HeaderPrefix
	}
	if other.Ingest.Delimiter != "" {
		c.Ingest.Delimiter = other.Ingest.Delimiter
	}
}

// ApplyEnv overrides fields from PROFTREE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvDefaultDB); v != "" {
		c.DefaultDB = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s %q", EnvPort, v)
		}
		c.Server.Port = port
	}
	return nil
}

// GzipEnabled reports whether responses are compressed.
func (c *Config) GzipEnabled() bool {
	return c.Server.Gzip == nil || *c.Server.Gzip
}

// MetricsEnabled reports whether the metrics endpoint is served.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}
