package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"flkv/internal/logging"
)

const (
	// badger rejects keys longer than this, namespace byte included.
	badgerMaxKeySize = 65000

	// upper bound of badger's per-entry transaction estimate beyond key and
	// value bytes: namespace byte, two meta bytes and the version suffix
	badgerEntryOverhead = 1 + 2 + 10
)

type BadgerEngine struct {
	db     *badger.DB
	config Config
	limits Limits
	logger *logging.Logger

	// mu guards closed; badger serializes writes itself
	mu     sync.RWMutex
	closed bool

	stopGC chan struct{}
	gcDone chan struct{}

	counters opCounters
}

var _ Engine = (*BadgerEngine)(nil)

func NewBadgerEngine(config Config) (*BadgerEngine, error) {
	config = config.withDefaults()

	opts := badger.DefaultOptions(config.DataPath)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	opts = opts.WithSyncWrites(config.SyncWrites).
		WithDetectConflicts(false).
		WithLogger(newBackendLogger(config.Logger, BackendBadger))
	if config.MemTableSize > 0 {
		opts = opts.WithMemTableSize(config.MemTableSize)
	}
	if config.BlockCacheSize > 0 {
		opts = opts.WithBlockCacheSize(config.BlockCacheSize)
	}
	if config.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(config.ValueLogFileSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, openError(BackendBadger, err)
	}

	engine := &BadgerEngine{
		db:     db,
		config: config,
		limits: badgerLimits(config.Limits, opts, db),
		logger: config.Logger.WithField("backend", BackendBadger),
	}

	if config.ValueLogGC && !config.InMemory {
		engine.stopGC = make(chan struct{})
		engine.gcDone = make(chan struct{})
		go engine.runGC(config.GCInterval)
	}

	return engine, nil
}

// badgerLimits tightens limits to what a single badger transaction accepts,
// so oversized writes fail validation instead of reaching the backend.
func badgerLimits(limits Limits, opts badger.Options, db *badger.DB) Limits {
	limits.MaxKeySize = min(limits.MaxKeySize, badgerMaxKeySize-1)

	// an in-memory store keeps every value in the LSM tree and refuses
	// values above the threshold it was opened with
	maxValue := opts.ValueLogFileSize
	if opts.InMemory {
		maxValue = min(maxValue, opts.ValueThreshold)
	}
	limits.MaxValueSize = int(min(int64(limits.MaxValueSize), maxValue))

	// badger refuses a transaction once count or estimated size reaches
	// these, so stay strictly below both
	limits.MaxBatchOps = int(min(int64(limits.MaxBatchOps), db.MaxBatchCount()-1))
	maxBytes := db.MaxBatchSize() - 1 - int64(limits.MaxBatchOps)*badgerEntryOverhead
	limits.MaxBatchBytes = int(max(min(int64(limits.MaxBatchBytes), maxBytes), 0))
	return limits
}

func (e *BadgerEngine) Put(key, value []byte) error {
	if err := e.limits.checkPut(key, value); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}

	e.counters.puts.Add(1)
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(key), value)
	})
	return e.writeError("put", err)
}

func (e *BadgerEngine) Get(key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	e.counters.gets.Add(1)
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		e.counters.misses.Add(1)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ioError("badger get", err)
	}
	if value == nil {
		value = []byte{}
	}

	return value, nil
}

func (e *BadgerEngine) Delete(key []byte) error {
	if err := e.limits.checkKey(key); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}

	e.counters.deletes.Add(1)
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(encodeKey(key))
	})
	return e.writeError("delete", err)
}

// Write commits the whole batch in one update transaction; badger discards
// partially written transactions on replay.
func (e *BadgerEngine) Write(batch *Batch, sync bool) error {
	if err := e.limits.checkBatch(batch); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}

	e.counters.batches.Add(1)
	e.counters.batchOps.Add(int64(batch.Len()))

	txn := e.db.NewTransaction(true)
	defer txn.Discard()

	var err error
	batch.Range(func(op Op) bool {
		switch op.Kind {
		case OpPut:
			err = txn.Set(encodeKey(op.Key), op.Value)
		case OpDelete:
			err = txn.Delete(encodeKey(op.Key))
		}
		return err == nil
	})
	if err != nil {
		return e.writeError("batch", err)
	}

	if err := txn.Commit(); err != nil {
		return e.writeError("batch commit", err)
	}

	if sync && !e.config.SyncWrites && !e.config.InMemory {
		if err := e.db.Sync(); err != nil {
			return ioError("badger sync", err)
		}
	}

	return nil
}

func (e *BadgerEngine) List(prefix []byte, limit int) ([]KeyValue, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	var result []KeyValue
	err := e.db.View(func(txn *badger.Txn) error {
		seek := encodeKey(prefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = seek
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			item := it.Item()

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			result = append(result, KeyValue{Key: decodeKey(item.Key()), Value: value})
			if limit > 0 && len(result) >= limit {
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, ioError("badger list", err)
	}

	return result, nil
}

func (e *BadgerEngine) Flush() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return e.flush()
}

func (e *BadgerEngine) flush() error {
	e.counters.flushes.Add(1)
	if e.config.InMemory {
		return nil
	}
	if err := e.db.Sync(); err != nil {
		return ioError("badger sync", err)
	}
	return nil
}

// Compact flattens the LSM tree so tombstones are dropped, then gives the
// value log a chance to reclaim space.
func (e *BadgerEngine) Compact() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}

	if err := e.db.Flatten(1); err != nil {
		return ioError("badger flatten", err)
	}
	if !e.config.InMemory {
		e.collectValueLog()
	}
	return nil
}

func (e *BadgerEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.stopGC != nil {
		close(e.stopGC)
		<-e.gcDone
	}

	flushErr := e.flush()
	if err := e.db.Close(); err != nil {
		return errors.Join(flushErr, ioError("badger close", err))
	}
	return flushErr
}

func (e *BadgerEngine) Stats() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := map[string]interface{}{
		"backend":   BackendBadger,
		"in_memory": e.config.InMemory,
		"closed":    e.closed,
	}
	if !e.closed {
		lsmSize, vlogSize := e.db.Size()
		stats["lsm_structure"] = e.db.LevelsToString()
		stats["tables"] = len(e.db.Tables())
		stats["lsm_size"] = lsmSize
		stats["vlog_size"] = vlogSize
		stats["total_size"] = lsmSize + vlogSize
	}

	return e.counters.snapshot(stats)
}

func (e *BadgerEngine) writeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrTxnTooBig),
		errors.Is(err, badger.ErrEmptyKey),
		errors.Is(err, badger.ErrInvalidKey),
		errors.Is(err, badger.ErrInvalidRequest):
		return fmt.Errorf("badger %s: %w: %w", op, ErrInvalidArgument, err)
	case errors.Is(err, badger.ErrDBClosed):
		return ErrClosed
	default:
		return ioError("badger "+op, err)
	}
}

func (e *BadgerEngine) runGC(interval time.Duration) {
	defer close(e.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.collectValueLog()
		case <-e.stopGC:
			return
		}
	}
}

func (e *BadgerEngine) collectValueLog() {
	rounds := 0
	for {
		err := e.db.RunValueLogGC(0.7)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
				e.logger.Warn("value log GC failed", "error", err)
			}
			break
		}
		rounds++
	}

	e.logger.Debug("value log GC completed", "rewrites", rounds)
}
