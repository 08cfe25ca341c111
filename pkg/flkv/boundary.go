package flkv

import (
	"errors"
	"sync"

	"flkv/internal/buffer"
	"flkv/internal/config"
	"flkv/internal/logging"
)

var (
	defaultMu      sync.Mutex
	defaultRuntime *Runtime
)

// Default returns the process-wide runtime used by the DB* and Batch*
// functions, creating it on first use from the default configuration with
// the embedded logging preset.
func Default() *Runtime {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRuntime == nil {
		cfg := config.DefaultConfig()
		logging.SetupEnvironmentLogging(cfg, "embedded")
		defaultRuntime = NewRuntime(cfg, logging.NewLogger(&cfg.Logging))
	}
	return defaultRuntime
}

// SetDefault replaces the process-wide runtime and returns the previous one,
// which the caller becomes responsible for shutting down.
func SetDefault(r *Runtime) *Runtime {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultRuntime
	defaultRuntime = r
	return prev
}

func (r *Runtime) report(operation string, err error) bool {
	if err == nil {
		return true
	}
	r.logger.Error("flkv operation failed", "operation", operation, "error", err)
	return false
}

// DBOpen opens a store. It returns the zero DB on failure.
func DBOpen(name string, memory bool) DB {
	r := Default()
	db, err := r.Open(name, memory)
	if !r.report("open", err) {
		return 0
	}
	return db
}

func DBPut(db DB, key, value buffer.Buffer) bool {
	r := Default()
	return r.report("put", r.Put(db, key, value))
}

// DBCreateBatch returns a new empty batch.
func DBCreateBatch() Batch {
	return Default().CreateBatch()
}

func BatchAddKV(b Batch, key, value buffer.Buffer) bool {
	r := Default()
	return r.report("batch_add", r.BatchPut(b, key, value))
}

func BatchDeleteKV(b Batch, key buffer.Buffer) bool {
	r := Default()
	return r.report("batch_delete", r.BatchDelete(b, key))
}

func BatchClear(b Batch) bool {
	r := Default()
	return r.report("batch_clear", r.BatchClear(b))
}

func BatchDestroy(b Batch) bool {
	r := Default()
	return r.report("batch_destroy", r.DestroyBatch(b))
}

func DBPutBatch(db DB, b Batch, sync bool) bool {
	r := Default()
	return r.report("put_batch", r.WriteBatch(db, b, sync))
}

// DBGet returns the value stored under key. A nil result means the key is
// absent or the lookup failed; an empty value is returned as an empty,
// non-nil Buffer.
func DBGet(db DB, key buffer.Buffer) *buffer.Buffer {
	r := Default()
	value, err := r.Get(db, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if !r.report("get", err) {
		return nil
	}
	return &value
}

func DBDelete(db DB, key buffer.Buffer) bool {
	r := Default()
	return r.report("delete", r.Delete(db, key))
}

func DBFlush(db DB) bool {
	r := Default()
	return r.report("flush", r.Flush(db))
}

// DBClose closes db. Closing an invalid handle does nothing.
func DBClose(db DB) {
	r := Default()
	if err := r.Close(db); err != nil && !errors.Is(err, ErrInvalidHandle) {
		r.report("close", err)
	}
}
