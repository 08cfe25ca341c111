package storage

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const defaultPebbleCacheSize = 8 << 20

type PebbleEngine struct {
	db        *pebble.DB
	config    Config
	writeOpts *pebble.WriteOptions

	mu     sync.RWMutex
	closed bool

	counters opCounters
}

var _ Engine = (*PebbleEngine)(nil)

func NewPebbleEngine(config Config) (*PebbleEngine, error) {
	config = config.withDefaults()

	cacheSize := config.BlockCacheSize
	if cacheSize <= 0 {
		cacheSize = defaultPebbleCacheSize
	}
	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:  cache,
		Logger: newBackendLogger(config.Logger, BackendPebble),
	}
	if config.MemTableSize > 0 {
		opts.MemTableSize = uint64(config.MemTableSize)
	}

	dir := config.DataPath
	if config.InMemory {
		opts.FS = vfs.NewMem()
		dir = ""
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, openError(BackendPebble, err)
	}

	writeOpts := pebble.NoSync
	if config.SyncWrites {
		writeOpts = pebble.Sync
	}

	return &PebbleEngine{db: db, config: config, writeOpts: writeOpts}, nil
}

func (p *PebbleEngine) Put(key, value []byte) error {
	if err := p.config.Limits.checkPut(key, value); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	p.counters.puts.Add(1)
	if err := p.db.Set(encodeKey(key), value, p.writeOpts); err != nil {
		return ioError("pebble set", err)
	}
	return nil
}

func (p *PebbleEngine) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	p.counters.gets.Add(1)
	value, closer, err := p.db.Get(encodeKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		p.counters.misses.Add(1)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ioError("pebble get", err)
	}
	defer closer.Close()

	return clone(value), nil
}

func (p *PebbleEngine) Delete(key []byte) error {
	if err := p.config.Limits.checkKey(key); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	p.counters.deletes.Add(1)
	if err := p.db.Delete(encodeKey(key), p.writeOpts); err != nil {
		return ioError("pebble delete", err)
	}
	return nil
}

// Write commits a pebble batch, which reaches the WAL as a single record.
func (p *PebbleEngine) Write(batch *Batch, sync bool) error {
	if err := p.config.Limits.checkBatch(batch); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	p.counters.batches.Add(1)
	p.counters.batchOps.Add(int64(batch.Len()))

	b := p.db.NewBatch()
	defer b.Close()

	var err error
	batch.Range(func(op Op) bool {
		switch op.Kind {
		case OpPut:
			err = b.Set(encodeKey(op.Key), op.Value, nil)
		case OpDelete:
			err = b.Delete(encodeKey(op.Key), nil)
		}
		return err == nil
	})
	if err != nil {
		return ioError("pebble batch", err)
	}

	opts := p.writeOpts
	if sync {
		opts = pebble.Sync
	}
	if err := b.Commit(opts); err != nil {
		return ioError("pebble commit", err)
	}
	return nil
}

func (p *PebbleEngine) List(prefix []byte, limit int) ([]KeyValue, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	lower, upper := prefixRange(prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, ioError("pebble iterator", err)
	}

	var result []KeyValue
	for valid := iter.First(); valid; valid = iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			iter.Close()
			return nil, ioError("pebble iterator", err)
		}
		result = append(result, KeyValue{Key: decodeKey(iter.Key()), Value: clone(value)})
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	if err := iter.Close(); err != nil {
		return nil, ioError("pebble iterator", err)
	}
	return result, nil
}

func (p *PebbleEngine) Flush() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	return p.flush()
}

func (p *PebbleEngine) flush() error {
	p.counters.flushes.Add(1)
	if err := p.db.Flush(); err != nil {
		return ioError("pebble flush", err)
	}
	return nil
}

func (p *PebbleEngine) Compact() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	lower, upper := userKeyRange()
	if err := p.db.Compact(lower, upper, true); err != nil {
		return ioError("pebble compact", err)
	}
	return nil
}

func (p *PebbleEngine) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	flushErr := p.flush()
	if err := p.db.Close(); err != nil {
		return errors.Join(flushErr, ioError("pebble close", err))
	}
	return flushErr
}

func (p *PebbleEngine) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := map[string]interface{}{
		"backend":   BackendPebble,
		"in_memory": p.config.InMemory,
		"closed":    p.closed,
	}
	if !p.closed {
		metrics := p.db.Metrics()
		stats["metrics"] = metrics.String()
		stats["disk_usage"] = metrics.DiskSpaceUsage()
		stats["memtable_size"] = metrics.MemTable.Size
	}

	return p.counters.snapshot(stats)
}
