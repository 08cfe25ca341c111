package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type LevelDBEngine struct {
	db     *leveldb.DB
	config Config

	mu     sync.RWMutex
	closed bool

	counters opCounters
}

var _ Engine = (*LevelDBEngine)(nil)

func NewLevelDBEngine(config Config) (*LevelDBEngine, error) {
	config = config.withDefaults()

	opts := &opt.Options{}
	if config.MemTableSize > 0 {
		opts.WriteBuffer = int(config.MemTableSize)
	}
	if config.BlockCacheSize > 0 {
		opts.BlockCacheCapacity = int(config.BlockCacheSize)
	}

	var (
		db  *leveldb.DB
		err error
	)
	if config.InMemory {
		db, err = leveldb.Open(lstorage.NewMemStorage(), opts)
	} else {
		db, err = leveldb.OpenFile(config.DataPath, opts)
	}
	if err != nil {
		if lerrors.IsCorrupted(err) {
			config.Logger.Error("leveldb store is corrupt", "path", config.DataPath, "error", err)
		}
		return nil, openError(BackendLevelDB, err)
	}

	return &LevelDBEngine{db: db, config: config}, nil
}

func (l *LevelDBEngine) writeOptions(sync bool) *opt.WriteOptions {
	return &opt.WriteOptions{Sync: sync || l.config.SyncWrites}
}

func (l *LevelDBEngine) Put(key, value []byte) error {
	if err := l.config.Limits.checkPut(key, value); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}

	l.counters.puts.Add(1)
	return l.writeError("put", l.db.Put(encodeKey(key), value, l.writeOptions(false)))
}

func (l *LevelDBEngine) Get(key []byte) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}

	l.counters.gets.Add(1)
	value, err := l.db.Get(encodeKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		l.counters.misses.Add(1)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ioError("leveldb get", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (l *LevelDBEngine) Delete(key []byte) error {
	if err := l.config.Limits.checkKey(key); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}

	l.counters.deletes.Add(1)
	return l.writeError("delete", l.db.Delete(encodeKey(key), l.writeOptions(false)))
}

// Write records the batch as one journal entry, so a crash either replays
// all of it or none.
func (l *LevelDBEngine) Write(batch *Batch, sync bool) error {
	if err := l.config.Limits.checkBatch(batch); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}

	l.counters.batches.Add(1)
	l.counters.batchOps.Add(int64(batch.Len()))

	b := new(leveldb.Batch)
	batch.Range(func(op Op) bool {
		switch op.Kind {
		case OpPut:
			b.Put(encodeKey(op.Key), op.Value)
		case OpDelete:
			b.Delete(encodeKey(op.Key))
		}
		return true
	})

	if b.Len() == 0 {
		if sync {
			return l.flush()
		}
		return nil
	}
	return l.writeError("batch", l.db.Write(b, l.writeOptions(sync)))
}

func (l *LevelDBEngine) List(prefix []byte, limit int) ([]KeyValue, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}

	iter := l.db.NewIterator(util.BytesPrefix(encodeKey(prefix)), nil)
	defer iter.Release()

	var result []KeyValue
	for iter.Next() {
		result = append(result, KeyValue{Key: decodeKey(iter.Key()), Value: clone(iter.Value())})
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, ioError("leveldb iterator", err)
	}

	return result, nil
}

func (l *LevelDBEngine) Flush() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	return l.flush()
}

// flush issues a synced write of the marker record. The journal is
// sequential, so syncing it makes every earlier write durable too.
func (l *LevelDBEngine) flush() error {
	l.counters.flushes.Add(1)
	if err := l.db.Put(flushMarkerKey, nil, &opt.WriteOptions{Sync: true}); err != nil {
		return ioError("leveldb flush", err)
	}
	return nil
}

func (l *LevelDBEngine) Compact() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}

	lower, upper := userKeyRange()
	if err := l.db.CompactRange(util.Range{Start: lower, Limit: upper}); err != nil {
		return ioError("leveldb compact", err)
	}
	return nil
}

func (l *LevelDBEngine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	flushErr := l.flush()
	if err := l.db.Close(); err != nil {
		return errors.Join(flushErr, ioError("leveldb close", err))
	}
	return flushErr
}

func (l *LevelDBEngine) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := map[string]interface{}{
		"backend":   BackendLevelDB,
		"in_memory": l.config.InMemory,
		"closed":    l.closed,
	}
	if !l.closed {
		if levels, err := l.db.GetProperty("leveldb.stats"); err == nil {
			stats["levels"] = levels
		}
		if size, err := l.db.GetProperty("leveldb.cachedblock"); err == nil {
			stats["cached_block"] = size
		}
	}

	return l.counters.snapshot(stats)
}

func (l *LevelDBEngine) writeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, leveldb.ErrClosed):
		return ErrClosed
	default:
		return ioError("leveldb "+op, err)
	}
}
