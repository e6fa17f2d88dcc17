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
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestConfigDefaults tests that defaults are correctly applied
func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig("/tmp/heads")

	assert.Equal(t, "/tmp/heads", cfg.Store.Dir)
	assert.Equal(t, runtime.NumCPU(), cfg.Store.Pool.Workers)
	assert.Equal(t, runtime.NumCPU()*64, cfg.Store.Pool.QueueSize)
	assert.Zero(t, cfg.Store.Pool.RateLimitQPS)
	assert.Equal(t, ":9121", cfg.Store.HTTP.ListenAddress)
	assert.Equal(t, 10*time.Second, cfg.Store.HTTP.RequestTimeout)
	assert.Equal(t, "info", cfg.Store.Log.Level)
	assert.Equal(t, "console", cfg.Store.Log.Encoding)
	assert.Equal(t, []string{"stdout"}, cfg.Store.Log.OutputPaths)
	assert.Equal(t, 30*time.Second, cfg.Store.Reliability.ShutdownTimeout)
	assert.False(t, cfg.Store.SkipUndecodable, "abort on undecodable entries must stay the default")

	require.NoError(t, cfg.Validate())
}

func TestConfigRateLimitBurstDefault(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Dir: "x", Pool: PoolConfig{RateLimitQPS: 0.5}}}
	cfg.SetDefaults()
	assert.Equal(t, 1, cfg.Store.Pool.RateLimitBurst)

	cfg = &Config{Store: StoreConfig{Dir: "x", Pool: PoolConfig{RateLimitQPS: 250}}}
	cfg.SetDefaults()
	assert.Equal(t, 250, cfg.Store.Pool.RateLimitBurst)
}

// TestConfigValidation tests validation rules
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"MissingDir", func(c *Config) { c.Store.Dir = "" }},
		{"NegativeWorkers", func(c *Config) { c.Store.Pool.Workers = -1 }},
		{"NegativeQPS", func(c *Config) { c.Store.Pool.RateLimitQPS = -1 }},
		{"QPSWithoutBurst", func(c *Config) {
			c.Store.Pool.RateLimitQPS = 10
			c.Store.Pool.RateLimitBurst = 0
		}},
		{"AuthWithoutUsers", func(c *Config) { c.Store.Auth.Enable = true }},
		{"BadLogLevel", func(c *Config) { c.Store.Log.Level = "verbose" }},
		{"BadLogEncoding", func(c *Config) { c.Store.Log.Encoding = "xml" }},
		{"BadDiskPercent", func(c *Config) { c.Store.Monitoring.DiskWarnPercent = 101 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("/tmp/heads")
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fileheads.yaml")

	raw := map[string]any{
		"store": map[string]any{
			"dir":              "/srv/heads",
			"create":           true,
			"skip_undecodable": true,
			"pool": map[string]any{
				"workers":        3,
				"rate_limit_qps": 100.0,
			},
			"http": map[string]any{
				"listen_address":  "127.0.0.1:8080",
				"request_timeout": "2s",
			},
			"auth": map[string]any{
				"enable": true,
				"users":  map[string]string{"admin": "$2a$10$abcdefghijklmnopqrstuv"},
			},
			"log": map[string]any{
				"level":    "debug",
				"encoding": "json",
			},
		},
	}
	data, err := yaml.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/heads", cfg.Store.Dir)
	assert.True(t, cfg.Store.Create)
	assert.True(t, cfg.Store.SkipUndecodable)
	assert.Equal(t, 3, cfg.Store.Pool.Workers)
	assert.Equal(t, 192, cfg.Store.Pool.QueueSize)
	assert.Equal(t, 100, cfg.Store.Pool.RateLimitBurst)
	assert.Equal(t, "127.0.0.1:8080", cfg.Store.HTTP.ListenAddress)
	assert.Equal(t, 2*time.Second, cfg.Store.HTTP.RequestTimeout)
	assert.Contains(t, cfg.Store.Auth.Users, "admin")
	assert.Equal(t, "debug", cfg.Store.Log.Level)
	assert.Equal(t, "json", cfg.Store.Log.Encoding)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoadConfigOrDefault(t *testing.T) {
	t.Run("MissingFileFallsBackToDefaults", func(t *testing.T) {
		cfg, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), "/data/heads")
		require.NoError(t, err)
		assert.Equal(t, "/data/heads", cfg.Store.Dir)
	})

	t.Run("DirFlagOverridesFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fileheads.yaml")
		require.NoError(t, os.WriteFile(path, []byte("store:\n  dir: /from/file\n"), 0o644))

		cfg, err := LoadConfigOrDefault(path, "/from/flag")
		require.NoError(t, err)
		assert.Equal(t, "/from/flag", cfg.Store.Dir)
	})

	t.Run("NoDirAnywhere", func(t *testing.T) {
		_, err := LoadConfigOrDefault("", "")
		assert.Error(t, err)
	})
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("FILEHEADS_DIR", "/env/heads")
	t.Setenv("FILEHEADS_POOL_WORKERS", "7")
	t.Setenv("FILEHEADS_LISTEN_ADDRESS", ":7000")
	t.Setenv("FILEHEADS_LOG_LEVEL", "warn")
	t.Setenv("FILEHEADS_LOG_ENCODING", "json")

	cfg := DefaultConfig("/tmp/heads")
	cfg.OverrideFromEnv()

	assert.Equal(t, "/env/heads", cfg.Store.Dir)
	assert.Equal(t, 7, cfg.Store.Pool.Workers)
	assert.Equal(t, ":7000", cfg.Store.HTTP.ListenAddress)
	assert.Equal(t, "warn", cfg.Store.Log.Level)
	assert.Equal(t, "json", cfg.Store.Log.Encoding)
}
