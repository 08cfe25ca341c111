package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Storage.Engine != "badger" {
		t.Errorf("Expected default storage engine to be badger, got %s", config.Storage.Engine)
	}

	if config.Storage.MaxKeySize != 32*1024 {
		t.Errorf("Expected default max key size of 32KiB, got %d", config.Storage.MaxKeySize)
	}
	if config.Storage.MaxBatchOps != 100000 {
		t.Errorf("Expected default max batch ops of 100000, got %d", config.Storage.MaxBatchOps)
	}

	if config.Cache.Enabled {
		t.Error("Expected the read cache to be disabled by default")
	}

	if config.Inspect.Addr() != "localhost:8080" {
		t.Errorf("Expected default inspect address localhost:8080, got %s", config.Inspect.Addr())
	}

	if !config.Inspect.EnableMetrics {
		t.Error("Expected metrics to be served by default")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "flkv.yaml")

	configContent := `
storage:
  engine: "pebble"
  data_dir: "/var/lib/flkv"
  sync_writes: true
  max_batch_bytes: 1048576

cache:
  enabled: true
  size: 500
  ttl: 90s

logging:
  level: "debug"
  format: "console"

inspect:
  port: 9000
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	config, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Storage.Engine != "pebble" {
		t.Errorf("Expected engine to be pebble, got %s", config.Storage.Engine)
	}
	if config.Storage.DataDir != "/var/lib/flkv" {
		t.Errorf("Expected data dir /var/lib/flkv, got %s", config.Storage.DataDir)
	}
	if !config.Storage.SyncWrites {
		t.Error("Expected sync_writes to be true")
	}
	if config.Storage.MaxBatchBytes != 1048576 {
		t.Errorf("Expected max batch bytes 1048576, got %d", config.Storage.MaxBatchBytes)
	}
	// untouched fields keep their defaults
	if config.Storage.MaxValueSize != 16*1024*1024 {
		t.Errorf("Expected default max value size, got %d", config.Storage.MaxValueSize)
	}
	if !config.Cache.Enabled || config.Cache.Size != 500 || config.Cache.TTL != 90*time.Second {
		t.Errorf("Unexpected cache section: %+v", config.Cache)
	}
	if config.Logging.Format != "console" {
		t.Errorf("Expected log format console, got %s", config.Logging.Format)
	}
	if config.Inspect.Port != 9000 || config.Inspect.Host != "localhost" {
		t.Errorf("Unexpected inspect section: %+v", config.Inspect)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "flkv.toml")
	if err := os.WriteFile(configFile, []byte("engine = 'badger'"), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	if _, err := Load(configFile); err == nil || !strings.Contains(err.Error(), "unsupported config file format") {
		t.Errorf("Expected unsupported format error, got %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FLKV_STORAGE_ENGINE", "leveldb")
	t.Setenv("FLKV_STORAGE_DATA_DIR", "/srv/flkv")
	t.Setenv("FLKV_STORAGE_SYNC_WRITES", "true")
	t.Setenv("FLKV_STORAGE_MAX_VALUE_SIZE", "4096")
	t.Setenv("FLKV_STORAGE_MAX_BATCH_OPS", "250")
	t.Setenv("FLKV_CACHE_ENABLED", "1")
	t.Setenv("FLKV_CACHE_TTL", "2m")
	t.Setenv("FLKV_LOG_LEVEL", "error")
	t.Setenv("FLKV_INSPECT_PORT", "7070")
	t.Setenv("FLKV_INSPECT_METRICS", "false")
	t.Setenv("FLKV_STORAGE_MAX_KEY_SIZE", "not-a-number")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Storage.Engine != "leveldb" {
		t.Errorf("Expected storage engine to be leveldb, got %s", config.Storage.Engine)
	}
	if config.Storage.DataDir != "/srv/flkv" {
		t.Errorf("Expected data dir /srv/flkv, got %s", config.Storage.DataDir)
	}
	if !config.Storage.SyncWrites {
		t.Error("Expected sync writes from environment")
	}
	if config.Storage.MaxValueSize != 4096 {
		t.Errorf("Expected max value size 4096, got %d", config.Storage.MaxValueSize)
	}
	if config.Storage.MaxBatchOps != 250 {
		t.Errorf("Expected max batch ops 250, got %d", config.Storage.MaxBatchOps)
	}
	if config.Storage.MaxKeySize != 32*1024 {
		t.Errorf("Malformed env value should be ignored, got %d", config.Storage.MaxKeySize)
	}
	if !config.Cache.Enabled || config.Cache.TTL != 2*time.Minute {
		t.Errorf("Unexpected cache section: %+v", config.Cache)
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
	if config.Inspect.Port != 7070 {
		t.Errorf("Expected inspect port 7070, got %d", config.Inspect.Port)
	}
	if config.Inspect.EnableMetrics {
		t.Error("Expected metrics disabled from environment")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			modify: func(*Config) {},
		},
		{
			name:        "unknown engine",
			modify:      func(c *Config) { c.Storage.Engine = "rocksdb" },
			expectError: true,
			errorMsg:    "unknown storage engine",
		},
		{
			name:        "empty engine",
			modify:      func(c *Config) { c.Storage.Engine = "" },
			expectError: true,
			errorMsg:    "unknown storage engine",
		},
		{
			name:        "empty data dir",
			modify:      func(c *Config) { c.Storage.DataDir = "" },
			expectError: true,
			errorMsg:    "data dir cannot be empty",
		},
		{
			name:        "zero max key size",
			modify:      func(c *Config) { c.Storage.MaxKeySize = 0 },
			expectError: true,
			errorMsg:    "max key size must be positive",
		},
		{
			name:        "zero max batch ops",
			modify:      func(c *Config) { c.Storage.MaxBatchOps = 0 },
			expectError: true,
			errorMsg:    "max batch ops must be positive",
		},
		{
			name:        "negative memtable",
			modify:      func(c *Config) { c.Storage.MemTableSize = -1 },
			expectError: true,
			errorMsg:    "cannot be negative",
		},
		{
			name: "enabled cache without size",
			modify: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.Size = 0
			},
			expectError: true,
			errorMsg:    "cache size must be positive",
		},
		{
			name:        "gc disabled allows zero interval",
			modify:      func(c *Config) { c.Storage.ValueLogGC = false; c.Storage.GCInterval = 0 },
			expectError: false,
		},
		{
			name:        "invalid log level",
			modify:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "invalid log level",
		},
		{
			name:        "invalid log format",
			modify:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
			errorMsg:    "invalid log format",
		},
		{
			name:        "invalid inspect port",
			modify:      func(c *Config) { c.Inspect.Port = 70000 },
			expectError: true,
			errorMsg:    "invalid inspect port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected validation error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no validation error but got: %v", err)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	configStr := DefaultConfig().String()

	for _, section := range []string{"storage:", "cache:", "logging:", "inspect:", "gc_interval: 5m0s"} {
		if !strings.Contains(configStr, section) {
			t.Errorf("Config string should contain %q", section)
		}
	}
}
