package storage

import (
	"fmt"
)

// NewEngine opens the backend named by config.Backend without any wrapping.
func NewEngine(config Config) (Engine, error) {
	switch config.Backend {
	case BackendBadger, "":
		return NewBadgerEngine(config)
	case BackendPebble:
		return NewPebbleEngine(config)
	case BackendLevelDB:
		return NewLevelDBEngine(config)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrOpen, config.Backend)
	}
}

// Open creates a storage engine, optionally with caching. A persistent store
// is claimed for this process until the returned engine is closed.
func Open(config Config) (Engine, error) {
	config = config.withDefaults()

	if config.InMemory {
		engine, err := NewEngine(config)
		if err != nil {
			return nil, err
		}
		config.Logger.Info("database opened", "backend", config.Backend, "in_memory", true)
		return withCache(engine, config), nil
	}

	if config.DataPath == "" {
		return nil, fmt.Errorf("%w: empty data path", ErrOpen)
	}

	path, err := acquirePath(config.DataPath)
	if err != nil {
		return nil, err
	}

	engine, err := openAt(path, config)
	if err != nil {
		releasePath(path)
		return nil, err
	}

	config.Logger.Info("database opened", "backend", config.Backend, "path", path)
	return withCache(&pathLocked{Engine: engine, path: path}, config), nil
}

func openAt(path string, config Config) (Engine, error) {
	if err := prepareDir(path, config.Backend); err != nil {
		return nil, err
	}

	config.DataPath = path
	engine, err := NewEngine(config)
	if err != nil {
		return nil, err
	}

	if err := writeMarker(path, config.Backend); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

func withCache(engine Engine, config Config) Engine {
	if !config.CacheEnabled {
		return engine
	}
	return NewCachedEngine(engine, CacheConfig{
		Size:            config.CacheSize,
		MaxBytes:        config.CacheMaxBytes,
		TTL:             config.CacheTTL,
		CleanupInterval: config.CacheCleanupInterval,
	})
}
