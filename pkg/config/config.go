// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config unified configuration structure
type Config struct {
	Store StoreConfig `yaml:"store"`
}

// StoreConfig head store configuration
type StoreConfig struct {
	// Directory holding the marker files
	Dir string `yaml:"dir"`
	// Create the directory (with parents) when it does not exist
	Create bool `yaml:"create"`
	// Skip prefixed entries that fail to decode instead of aborting the enumeration
	SkipUndecodable bool `yaml:"skip_undecodable"`
	// Serialize operations per key and isolate enumerations from in-process writers
	Serialized bool `yaml:"serialized"`

	// Sub-configurations
	Pool        PoolConfig        `yaml:"pool"`
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	Log         LogConfig         `yaml:"log"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Reliability ReliabilityConfig `yaml:"reliability"`
}

// PoolConfig worker pool configuration
type PoolConfig struct {
	Workers        int     `yaml:"workers"`          // Default runtime.NumCPU()
	QueueSize      int     `yaml:"queue_size"`       // Default workers * 64
	RateLimitQPS   float64 `yaml:"rate_limit_qps"`   // Dispatched syscalls per second, default 0 (no limit)
	RateLimitBurst int     `yaml:"rate_limit_burst"` // Token bucket size, default max(1, qps)
}

// HTTPConfig HTTP API configuration
type HTTPConfig struct {
	ListenAddress  string        `yaml:"listen_address"`  // Default :9121
	ReadTimeout    time.Duration `yaml:"read_timeout"`    // Default 10s
	WriteTimeout   time.Duration `yaml:"write_timeout"`   // Default 30s
	RequestTimeout time.Duration `yaml:"request_timeout"` // Per-request wait on store handles, default 10s
	MaxKeyBytes    int           `yaml:"max_key_bytes"`   // Default 200
}

// AuthConfig authentication configuration for mutating HTTP requests
type AuthConfig struct {
	Enable bool              `yaml:"enable"` // Default false
	Users  map[string]string `yaml:"users"`  // username -> bcrypt hash
}

// LogConfig log configuration
type LogConfig struct {
	Level            string   `yaml:"level"`              // Default info
	Encoding         string   `yaml:"encoding"`           // Default console
	OutputPaths      []string `yaml:"output_paths"`       // Default ["stdout"]
	ErrorOutputPaths []string `yaml:"error_output_paths"` // Default ["stderr"]
	MaxSizeMB        int      `yaml:"max_size_mb"`        // Rotation size for file outputs, default 100
	MaxBackups       int      `yaml:"max_backups"`        // Default 10
	MaxAgeDays       int      `yaml:"max_age_days"`       // Default 7
	Compress         bool     `yaml:"compress"`           // Default false
}

// MonitoringConfig monitoring configuration
type MonitoringConfig struct {
	EnablePrometheus bool   `yaml:"enable_prometheus"` // Default false
	ListenAddress    string `yaml:"listen_address"`    // Default :9090
	MinFreeDiskGB    int64  `yaml:"min_free_disk_gb"`  // Health check critical threshold, default 1
	DiskWarnPercent  int64  `yaml:"disk_warn_percent"` // Health check warning threshold, default 90
}

// ReliabilityConfig reliability configuration
type ReliabilityConfig struct {
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Default 30s
}

// DefaultConfig returns a configuration with recommended default values
// Use this function to get defaults when no config file is provided
func DefaultConfig(dir string) *Config {
	cfg := &Config{
		Store: StoreConfig{
			Dir: dir,
		},
	}

	// Set all default values
	cfg.SetDefaults()

	return cfg
}

// LoadConfig loads configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Set default values
	cfg.SetDefaults()

	// Override from environment variables
	cfg.OverrideFromEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadConfigOrDefault attempts to load configuration from file, uses defaults if file doesn't exist
func LoadConfigOrDefault(path string, dir string) (*Config, error) {
	// Try loading config file
	if path != "" {
		cfg, err := LoadConfig(path)
		if err == nil {
			if dir != "" {
				cfg.Store.Dir = dir
			}
			return cfg, nil
		}
		// If file doesn't exist, use default config
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err // File exists but has other error, return error
		}
	}

	// Use default configuration
	cfg := DefaultConfig(dir)

	// Override from environment variables
	cfg.OverrideFromEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SetDefaults sets default values
func (c *Config) SetDefaults() {
	// Pool defaults
	if c.Store.Pool.Workers == 0 {
		c.Store.Pool.Workers = runtime.NumCPU()
	}
	if c.Store.Pool.QueueSize == 0 {
		c.Store.Pool.QueueSize = c.Store.Pool.Workers * 64
	}
	if c.Store.Pool.RateLimitQPS > 0 && c.Store.Pool.RateLimitBurst == 0 {
		c.Store.Pool.RateLimitBurst = max(1, int(c.Store.Pool.RateLimitQPS))
	}

	// HTTP defaults
	if c.Store.HTTP.ListenAddress == "" {
		c.Store.HTTP.ListenAddress = ":9121"
	}
	if c.Store.HTTP.ReadTimeout == 0 {
		c.Store.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.Store.HTTP.WriteTimeout == 0 {
		c.Store.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.Store.HTTP.RequestTimeout == 0 {
		c.Store.HTTP.RequestTimeout = 10 * time.Second
	}
	if c.Store.HTTP.MaxKeyBytes == 0 {
		c.Store.HTTP.MaxKeyBytes = 200 // leaves room for "head:key=" plus percent-encoding growth
	}

	// Log defaults
	if c.Store.Log.Level == "" {
		c.Store.Log.Level = "info"
	}
	if c.Store.Log.Encoding == "" {
		c.Store.Log.Encoding = "console"
	}
	if len(c.Store.Log.OutputPaths) == 0 {
		c.Store.Log.OutputPaths = []string{"stdout"}
	}
	if len(c.Store.Log.ErrorOutputPaths) == 0 {
		c.Store.Log.ErrorOutputPaths = []string{"stderr"}
	}
	if c.Store.Log.MaxSizeMB == 0 {
		c.Store.Log.MaxSizeMB = 100
	}
	if c.Store.Log.MaxBackups == 0 {
		c.Store.Log.MaxBackups = 10
	}
	if c.Store.Log.MaxAgeDays == 0 {
		c.Store.Log.MaxAgeDays = 7
	}

	// Monitoring defaults
	if c.Store.Monitoring.ListenAddress == "" {
		c.Store.Monitoring.ListenAddress = ":9090"
	}
	if c.Store.Monitoring.MinFreeDiskGB == 0 {
		c.Store.Monitoring.MinFreeDiskGB = 1
	}
	if c.Store.Monitoring.DiskWarnPercent == 0 {
		c.Store.Monitoring.DiskWarnPercent = 90
	}

	// Reliability defaults
	if c.Store.Reliability.ShutdownTimeout == 0 {
		c.Store.Reliability.ShutdownTimeout = 30 * time.Second
	}
}

// OverrideFromEnv overrides configuration from environment variables
func (c *Config) OverrideFromEnv() {
	if dir := os.Getenv("FILEHEADS_DIR"); dir != "" {
		c.Store.Dir = dir
	}
	if workers := os.Getenv("FILEHEADS_POOL_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			c.Store.Pool.Workers = n
		}
	}
	if listenAddr := os.Getenv("FILEHEADS_LISTEN_ADDRESS"); listenAddr != "" {
		c.Store.HTTP.ListenAddress = listenAddr
	}

	// Log configuration
	if logLevel := os.Getenv("FILEHEADS_LOG_LEVEL"); logLevel != "" {
		c.Store.Log.Level = logLevel
	}
	if logEncoding := os.Getenv("FILEHEADS_LOG_ENCODING"); logEncoding != "" {
		c.Store.Log.Encoding = logEncoding
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir is required")
	}

	// Validate pool configuration
	if c.Store.Pool.Workers <= 0 {
		return fmt.Errorf("pool.workers must be > 0")
	}
	if c.Store.Pool.QueueSize <= 0 {
		return fmt.Errorf("pool.queue_size must be > 0")
	}
	if c.Store.Pool.RateLimitQPS < 0 {
		return fmt.Errorf("pool.rate_limit_qps must be >= 0")
	}
	if c.Store.Pool.RateLimitQPS > 0 && c.Store.Pool.RateLimitBurst <= 0 {
		return fmt.Errorf("pool.rate_limit_burst must be > 0 when rate limiting is enabled")
	}

	// Validate HTTP configuration
	if c.Store.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("http.request_timeout must be > 0")
	}
	if c.Store.HTTP.MaxKeyBytes <= 0 {
		return fmt.Errorf("http.max_key_bytes must be > 0")
	}

	// Validate Auth configuration
	if c.Store.Auth.Enable && len(c.Store.Auth.Users) == 0 {
		return fmt.Errorf("auth.users must not be empty when auth is enabled")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true,
		"error": true, "dpanic": true, "panic": true, "fatal": true,
	}
	if !validLogLevels[c.Store.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error, dpanic, panic, fatal")
	}

	// Validate log encoding
	if c.Store.Log.Encoding != "json" && c.Store.Log.Encoding != "console" {
		return fmt.Errorf("log.encoding must be either 'json' or 'console'")
	}

	// Validate monitoring configuration
	if c.Store.Monitoring.DiskWarnPercent < 0 || c.Store.Monitoring.DiskWarnPercent > 100 {
		return fmt.Errorf("monitoring.disk_warn_percent must be between 0 and 100")
	}

	if c.Store.Reliability.ShutdownTimeout <= 0 {
		return fmt.Errorf("reliability.shutdown_timeout must be > 0")
	}

	return nil
}
