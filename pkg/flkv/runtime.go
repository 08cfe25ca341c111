// Package flkv exposes embedded key-value stores through opaque handles.
//
// A Runtime owns every store and batch it hands out. Its methods report
// failures as errors; the package-level DB* and Batch* functions wrap the
// default Runtime and collapse failures to false, a zero handle or a nil
// buffer.
package flkv

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"flkv/internal/buffer"
	"flkv/internal/config"
	"flkv/internal/handle"
	"flkv/internal/logging"
	"flkv/internal/storage"
)

// DB is a handle to an open store. The zero DB is never valid.
type DB handle.Handle

// Batch is a handle to a write batch. The zero Batch is never valid.
type Batch handle.Handle

var (
	ErrInvalidHandle   = storage.ErrInvalidHandle
	ErrInvalidArgument = storage.ErrInvalidArgument
	ErrOpen            = storage.ErrOpen
	ErrIO              = storage.ErrIO
	ErrNotFound        = storage.ErrNotFound
)

type database struct {
	name   string
	engine storage.Engine
}

type Runtime struct {
	config  *config.Config
	logger  *logging.Logger
	dbs     *handle.Table[*database]
	batches *handle.Table[*storage.Batch]
}

// NewRuntime creates a runtime that opens stores according to cfg. A nil
// logger discards logs.
func NewRuntime(cfg *config.Config, logger *logging.Logger) *Runtime {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Runtime{
		config:  cfg,
		logger:  logger,
		dbs:     handle.NewTable[*database](),
		batches: handle.NewTable[*storage.Batch](),
	}
}

// StorageConfig converts the storage and cache sections of cfg into an engine
// configuration for the store at path.
func StorageConfig(cfg *config.Config, path string, memory bool, logger *logging.Logger) storage.Config {
	return storage.Config{
		Backend:          cfg.Storage.Engine,
		DataPath:         path,
		InMemory:         memory,
		SyncWrites:       cfg.Storage.SyncWrites,
		ValueLogGC:       cfg.Storage.ValueLogGC,
		GCInterval:       cfg.Storage.GCInterval,
		ValueLogFileSize: cfg.Storage.ValueLogFileSize,
		MemTableSize:     cfg.Storage.MemTableSize,
		BlockCacheSize:   cfg.Storage.BlockCacheSize,
		Limits: storage.Limits{
			MaxKeySize:    cfg.Storage.MaxKeySize,
			MaxValueSize:  cfg.Storage.MaxValueSize,
			MaxBatchBytes: cfg.Storage.MaxBatchBytes,
			MaxBatchOps:   cfg.Storage.MaxBatchOps,
		},
		CacheEnabled:         cfg.Cache.Enabled,
		CacheSize:            cfg.Cache.Size,
		CacheMaxBytes:        cfg.Cache.MaxBytes,
		CacheTTL:             cfg.Cache.TTL,
		CacheCleanupInterval: cfg.Cache.CleanupInterval,
		Logger:               logger,
	}
}

// StorePath resolves a store name to its directory. Relative names live
// under the configured data directory.
func (r *Runtime) StorePath(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(r.config.Storage.DataDir, name)
}

// Open opens the named store, or a fresh in-memory store when memory is set,
// in which case name is only used in logs.
func (r *Runtime) Open(name string, memory bool) (DB, error) {
	start := time.Now()

	var path string
	if !memory {
		if name == "" {
			return 0, fmt.Errorf("%w: empty store name", ErrOpen)
		}
		path = r.StorePath(name)
	}

	engine, err := storage.Open(StorageConfig(r.config, path, memory, r.logger.WithField("store", name)))
	r.observe(name, "open", nil, start, err)
	if err != nil {
		return 0, err
	}

	h := r.dbs.Insert(&database{name: name, engine: engine})
	return DB(h), nil
}

func (r *Runtime) lookup(db DB) (*database, error) {
	return r.dbs.Get(handle.Handle(db))
}

// Engine returns the engine behind db. It stays owned by the runtime.
func (r *Runtime) Engine(db DB) (storage.Engine, error) {
	d, err := r.lookup(db)
	if err != nil {
		return nil, err
	}
	return d.engine, nil
}

func (r *Runtime) Put(db DB, key, value buffer.Buffer) error {
	d, err := r.lookup(db)
	if err != nil {
		return err
	}

	start := time.Now()
	err = d.engine.Put(key.View(), value.View())
	r.observe(d.name, "put", key.View(), start, err)
	return err
}

// Get returns the value stored under key, or ErrNotFound. An empty value is
// a successful lookup.
func (r *Runtime) Get(db DB, key buffer.Buffer) (buffer.Buffer, error) {
	d, err := r.lookup(db)
	if err != nil {
		return buffer.Buffer{}, err
	}

	start := time.Now()
	value, err := d.engine.Get(key.View())
	if errors.Is(err, storage.ErrNotFound) {
		r.observe(d.name, "get", key.View(), start, nil)
		return buffer.Buffer{}, err
	}
	r.observe(d.name, "get", key.View(), start, err)
	if err != nil {
		return buffer.Buffer{}, err
	}

	// engines return a private copy
	return buffer.Wrap(value), nil
}

func (r *Runtime) Delete(db DB, key buffer.Buffer) error {
	d, err := r.lookup(db)
	if err != nil {
		return err
	}

	start := time.Now()
	err = d.engine.Delete(key.View())
	r.observe(d.name, "delete", key.View(), start, err)
	return err
}

// List returns up to limit pairs whose key starts with prefix in ascending
// key order.
func (r *Runtime) List(db DB, prefix buffer.Buffer, limit int) ([]storage.KeyValue, error) {
	d, err := r.lookup(db)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	items, err := d.engine.List(prefix.View(), limit)
	r.observe(d.name, "list", prefix.View(), start, err)
	return items, err
}

func (r *Runtime) CreateBatch() Batch {
	return Batch(r.batches.Insert(storage.NewBatch()))
}

func (r *Runtime) batch(b Batch) (*storage.Batch, error) {
	return r.batches.Get(handle.Handle(b))
}

// BatchPut stages an upsert. The batch keeps its own copy of key and value.
func (r *Runtime) BatchPut(b Batch, key, value buffer.Buffer) error {
	batch, err := r.batch(b)
	if err != nil {
		return err
	}
	batch.Put(key.View(), value.View())
	return nil
}

func (r *Runtime) BatchDelete(b Batch, key buffer.Buffer) error {
	batch, err := r.batch(b)
	if err != nil {
		return err
	}
	batch.Delete(key.View())
	return nil
}

func (r *Runtime) BatchClear(b Batch) error {
	batch, err := r.batch(b)
	if err != nil {
		return err
	}
	batch.Clear()
	return nil
}

// BatchLen reports the number of staged operations.
func (r *Runtime) BatchLen(b Batch) (int, error) {
	batch, err := r.batch(b)
	if err != nil {
		return 0, err
	}
	return batch.Len(), nil
}

// DestroyBatch releases b. Later use of b fails with ErrInvalidHandle.
func (r *Runtime) DestroyBatch(b Batch) error {
	_, err := r.batches.Remove(handle.Handle(b))
	return err
}

// WriteBatch applies every operation staged in b atomically. The batch is
// left intact for reuse.
func (r *Runtime) WriteBatch(db DB, b Batch, sync bool) error {
	d, err := r.lookup(db)
	if err != nil {
		return err
	}
	batch, err := r.batch(b)
	if err != nil {
		return err
	}

	start := time.Now()
	err = d.engine.Write(batch, sync)
	r.observe(d.name, "put_batch", nil, start, err)
	return err
}

func (r *Runtime) Flush(db DB) error {
	d, err := r.lookup(db)
	if err != nil {
		return err
	}

	start := time.Now()
	err = d.engine.Flush()
	r.observe(d.name, "flush", nil, start, err)
	return err
}

func (r *Runtime) Compact(db DB) error {
	d, err := r.lookup(db)
	if err != nil {
		return err
	}

	start := time.Now()
	err = d.engine.Compact()
	r.observe(d.name, "compact", nil, start, err)
	return err
}

func (r *Runtime) Stats(db DB) (map[string]interface{}, error) {
	d, err := r.lookup(db)
	if err != nil {
		return nil, err
	}

	stats := d.engine.Stats()
	stats["store"] = d.name
	return stats, nil
}

// Close flushes and closes db. The handle is invalid afterwards even when
// closing fails.
func (r *Runtime) Close(db DB) error {
	d, err := r.dbs.Remove(handle.Handle(db))
	if err != nil {
		return err
	}

	start := time.Now()
	err = d.engine.Close()
	r.observe(d.name, "close", nil, start, err)
	return err
}

// Shutdown closes every open store and releases every batch.
func (r *Runtime) Shutdown() error {
	r.batches.Drain()

	var errs []error
	for _, d := range r.dbs.Drain() {
		if err := d.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", d.name, err))
		}
	}
	return errors.Join(errs...)
}

// OpenStores reports the number of open stores.
func (r *Runtime) OpenStores() int {
	return r.dbs.Len()
}

func (r *Runtime) observe(store, operation string, key []byte, start time.Time, err error) {
	if !r.logger.DatabaseLogging() {
		return
	}
	ctx := logging.ContextWithStore(context.Background(), store)
	r.logger.DatabaseOperation(ctx, operation, hex.EncodeToString(key), time.Since(start), err)
}
