package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Engines lists the storage backends a config may name.
var Engines = []string{"badger", "pebble", "leveldb"}

type Config struct {
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Inspect InspectConfig `yaml:"inspect" json:"inspect"`
}

type StorageConfig struct {
	Engine string `yaml:"engine" json:"engine"`
	// DataDir holds one subdirectory per named store.
	DataDir    string `yaml:"data_dir" json:"data_dir"`
	SyncWrites bool   `yaml:"sync_writes" json:"sync_writes"`

	ValueLogGC       bool          `yaml:"value_log_gc" json:"value_log_gc"`
	GCInterval       time.Duration `yaml:"gc_interval" json:"gc_interval"`
	ValueLogFileSize int64         `yaml:"value_log_file_size" json:"value_log_file_size"`

	MemTableSize   int64 `yaml:"memtable_size" json:"memtable_size"`
	BlockCacheSize int64 `yaml:"block_cache_size" json:"block_cache_size"`

	MaxKeySize    int `yaml:"max_key_size" json:"max_key_size"`
	MaxValueSize  int `yaml:"max_value_size" json:"max_value_size"`
	MaxBatchBytes int `yaml:"max_batch_bytes" json:"max_batch_bytes"`
	MaxBatchOps   int `yaml:"max_batch_ops" json:"max_batch_ops"`
}

type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Size            int           `yaml:"size" json:"size"`           // Maximum number of items in cache
	MaxBytes        int64         `yaml:"max_bytes" json:"max_bytes"` // 0 = unbounded
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type LoggingConfig struct {
	Level                 string `yaml:"level" json:"level"`
	Format                string `yaml:"format" json:"format"`
	Output                string `yaml:"output" json:"output"`
	EnableRequestTracing  bool   `yaml:"enable_request_tracing" json:"enable_request_tracing"`
	EnableCorrelationIDs  bool   `yaml:"enable_correlation_ids" json:"enable_correlation_ids"`
	EnableDatabaseLogging bool   `yaml:"enable_database_logging" json:"enable_database_logging"`
}

// InspectConfig configures the HTTP inspection API served by flkvtool.
type InspectConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	MaxBodySize  int64         `yaml:"max_body_size" json:"max_body_size"`

	// EnableMetrics serves Prometheus metrics on /metrics.
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
}

func (i InspectConfig) Addr() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:        "badger",
			DataDir:       "./data",
			SyncWrites:    false,
			ValueLogGC:    true,
			GCInterval:    5 * time.Minute,
			MaxKeySize:    32 * 1024,
			MaxValueSize:  16 * 1024 * 1024,
			MaxBatchBytes: 8 * 1024 * 1024,
			MaxBatchOps:   100000,
		},
		Cache: CacheConfig{
			Enabled:         false,
			Size:            10000,
			MaxBytes:        64 * 1024 * 1024,
			TTL:             30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:                 "info",
			Format:                "json",
			Output:                "stderr",
			EnableRequestTracing:  true,
			EnableCorrelationIDs:  true,
			EnableDatabaseLogging: false,
		},
		Inspect: InspectConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
			MaxBodySize:  32 * 1024 * 1024,

			EnableMetrics: true,
		},
	}
}

func loadFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

func loadFromEnvironment(config *Config) {
	// Storage configuration
	if engine := os.Getenv("FLKV_STORAGE_ENGINE"); engine != "" {
		config.Storage.Engine = engine
	}
	if dataDir := os.Getenv("FLKV_STORAGE_DATA_DIR"); dataDir != "" {
		config.Storage.DataDir = dataDir
	}
	envBool("FLKV_STORAGE_SYNC_WRITES", &config.Storage.SyncWrites)
	envBool("FLKV_STORAGE_VALUE_LOG_GC", &config.Storage.ValueLogGC)
	envInt("FLKV_STORAGE_MAX_KEY_SIZE", &config.Storage.MaxKeySize)
	envInt("FLKV_STORAGE_MAX_VALUE_SIZE", &config.Storage.MaxValueSize)
	envInt("FLKV_STORAGE_MAX_BATCH_BYTES", &config.Storage.MaxBatchBytes)
	envInt("FLKV_STORAGE_MAX_BATCH_OPS", &config.Storage.MaxBatchOps)

	// Cache configuration
	envBool("FLKV_CACHE_ENABLED", &config.Cache.Enabled)
	envInt("FLKV_CACHE_SIZE", &config.Cache.Size)
	if ttl := os.Getenv("FLKV_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Cache.TTL = d
		}
	}

	// Logging configuration
	if level := os.Getenv("FLKV_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("FLKV_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("FLKV_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}
	envBool("FLKV_LOG_DATABASE", &config.Logging.EnableDatabaseLogging)

	// Inspection API configuration
	if host := os.Getenv("FLKV_INSPECT_HOST"); host != "" {
		config.Inspect.Host = host
	}
	envInt("FLKV_INSPECT_PORT", &config.Inspect.Port)
	envBool("FLKV_INSPECT_METRICS", &config.Inspect.EnableMetrics)
}

func envBool(name string, target *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func envInt(name string, target *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func (c *Config) Validate() error {
	// Storage validation
	if !slices.Contains(Engines, c.Storage.Engine) {
		return fmt.Errorf("unknown storage engine: %q", c.Storage.Engine)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if c.Storage.ValueLogGC && c.Storage.GCInterval <= 0 {
		return fmt.Errorf("GC interval must be positive")
	}
	if c.Storage.MemTableSize < 0 || c.Storage.BlockCacheSize < 0 || c.Storage.ValueLogFileSize < 0 {
		return fmt.Errorf("storage sizes cannot be negative")
	}
	if c.Storage.MaxKeySize <= 0 {
		return fmt.Errorf("max key size must be positive")
	}
	if c.Storage.MaxValueSize <= 0 {
		return fmt.Errorf("max value size must be positive")
	}
	if c.Storage.MaxBatchBytes <= 0 {
		return fmt.Errorf("max batch bytes must be positive")
	}
	if c.Storage.MaxBatchOps <= 0 {
		return fmt.Errorf("max batch ops must be positive")
	}

	// Cache validation
	if c.Cache.Enabled {
		if c.Cache.Size <= 0 {
			return fmt.Errorf("cache size must be positive when the cache is enabled")
		}
		if c.Cache.MaxBytes < 0 {
			return fmt.Errorf("cache max bytes cannot be negative")
		}
		if c.Cache.TTL < 0 || c.Cache.CleanupInterval < 0 {
			return fmt.Errorf("cache durations cannot be negative")
		}
	}

	// Logging validation
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true, "console": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Inspection API validation
	if c.Inspect.Port <= 0 || c.Inspect.Port > 65535 {
		return fmt.Errorf("invalid inspect port: %d", c.Inspect.Port)
	}
	if c.Inspect.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.Inspect.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Inspect.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be positive")
	}

	return nil
}

func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
