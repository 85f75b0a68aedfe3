package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon. Zero values mean
// "unspecified"; WithDefaults fills them in.
type Config struct {
	// Addr is the gateway listen address.
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// BinDir overrides where the llama-server executable is resolved from.
	// Empty falls back to $PATH.
	BinDir string `json:"bin_dir" yaml:"bin_dir" toml:"bin_dir"`
	// Model is the model identifier forwarded upstream in chat requests.
	Model string `json:"model" yaml:"model" toml:"model"`
	// APIKey is sent as a bearer token to the upstream server.
	APIKey string `json:"api_key" yaml:"api_key" toml:"api_key"`
	// LogLevel is a zerolog level string (trace..error).
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// Verbose relays supervised-process output through the daemon logger.
	Verbose bool `json:"verbose" yaml:"verbose" toml:"verbose"`
	// StartupTimeoutSec bounds how long the supervised server may take to
	// become ready. Time spent loading a model (503) does not count.
	StartupTimeoutSec int `json:"startup_timeout_s" yaml:"startup_timeout_s" toml:"startup_timeout_s"`
	// StopGraceSec is how long the supervised process gets to exit after
	// SIGTERM before it is killed.
	StopGraceSec int `json:"stop_grace_s" yaml:"stop_grace_s" toml:"stop_grace_s"`
	// MaxConcurrent bounds gateway chat streams running at once; excess
	// requests are rejected with 429.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	// CORSEnabled turns on the CORS middleware with the origins below.
	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Defaults applied by WithDefaults.
const (
	DefaultAddr              = ":8090"
	DefaultModel             = "local"
	DefaultAPIKey            = "-"
	DefaultLogLevel          = "info"
	DefaultStartupTimeoutSec = 300
	DefaultStopGraceSec      = 3
	DefaultMaxConcurrent     = 8
)

// WithDefaults returns a copy with every unspecified field filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.APIKey == "" {
		c.APIKey = DefaultAPIKey
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.StartupTimeoutSec <= 0 {
		c.StartupTimeoutSec = DefaultStartupTimeoutSec
	}
	if c.StopGraceSec <= 0 {
		c.StopGraceSec = DefaultStopGraceSec
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	return c
}

// StartupTimeout returns StartupTimeoutSec as a duration.
func (c Config) StartupTimeout() time.Duration {
	return time.Duration(c.StartupTimeoutSec) * time.Second
}

// StopGrace returns StopGraceSec as a duration.
func (c Config) StopGrace() time.Duration {
	return time.Duration(c.StopGraceSec) * time.Second
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
