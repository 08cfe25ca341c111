package logging

import (
	"flkv/internal/config"
)

// DevelopmentLoggingConfig returns human-readable logging with every engine
// call recorded.
func DevelopmentLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:                 "debug",
		Format:                "console",
		Output:                "stderr",
		EnableRequestTracing:  true,
		EnableCorrelationIDs:  true,
		EnableDatabaseLogging: true,
	}
}

// ProductionLoggingConfig returns JSON logging at info level.
func ProductionLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:                "info",
		Format:               "json",
		Output:               "stderr",
		EnableRequestTracing: true,
		EnableCorrelationIDs: true,
	}
}

// EmbeddedLoggingConfig suits a store linked into a host application: only
// warnings and failures reach the host's stderr.
func EmbeddedLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:  "warn",
		Format: "text",
		Output: "stderr",
	}
}

// TestLoggingConfig returns logging configuration optimized for testing
func TestLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:  "error",
		Format: "json",
		Output: "stderr",
	}
}

var presets = map[string]func() config.LoggingConfig{
	"development": DevelopmentLoggingConfig,
	"dev":         DevelopmentLoggingConfig,
	"production":  ProductionLoggingConfig,
	"prod":        ProductionLoggingConfig,
	"embedded":    EmbeddedLoggingConfig,
	"test":        TestLoggingConfig,
	"testing":     TestLoggingConfig,
	"staging": func() config.LoggingConfig {
		cfg := ProductionLoggingConfig()
		cfg.Level = "debug"
		return cfg
	},
}

// SetupEnvironmentLogging replaces cfg.Logging with the preset for
// environment. It reports false and leaves cfg alone for an unknown name.
func SetupEnvironmentLogging(cfg *config.Config, environment string) bool {
	preset, ok := presets[environment]
	if !ok {
		return false
	}
	cfg.Logging = preset()
	return true
}
