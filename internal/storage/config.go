package storage

import (
	"time"

	"flkv/internal/logging"
)

const (
	BackendBadger  = "badger"
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
)

// Backends lists the supported backend names.
var Backends = []string{BackendBadger, BackendPebble, BackendLevelDB}

type Config struct {
	Backend    string
	DataPath   string
	InMemory   bool
	SyncWrites bool

	// badger value log
	ValueLogGC       bool
	GCInterval       time.Duration
	ValueLogFileSize int64

	// Zero selects the backend default.
	MemTableSize   int64
	BlockCacheSize int64

	Limits Limits

	// Read cache settings
	CacheEnabled         bool
	CacheSize            int
	CacheMaxBytes        int64
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	// Logger receives engine and backend logs. Nil discards them.
	Logger *logging.Logger
}

// Limits bounds the size of single writes and batches. A backend may
// tighten them to what it can commit in one piece.
type Limits struct {
	MaxKeySize    int
	MaxValueSize  int
	MaxBatchBytes int
	MaxBatchOps   int
}

// DefaultLimits returns the limits used when a Config leaves them zero.
func DefaultLimits() Limits {
	return Limits{
		MaxKeySize:    32 * 1024,
		MaxValueSize:  16 * 1024 * 1024,
		MaxBatchBytes: 8 * 1024 * 1024,
		MaxBatchOps:   100000,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxKeySize <= 0 {
		l.MaxKeySize = d.MaxKeySize
	}
	if l.MaxValueSize <= 0 {
		l.MaxValueSize = d.MaxValueSize
	}
	if l.MaxBatchBytes <= 0 {
		l.MaxBatchBytes = d.MaxBatchBytes
	}
	if l.MaxBatchOps <= 0 {
		l.MaxBatchOps = d.MaxBatchOps
	}
	return l
}

func (l Limits) checkKey(key []byte) error {
	if len(key) > l.MaxKeySize {
		return invalidArgument("key of %d bytes exceeds limit of %d", len(key), l.MaxKeySize)
	}
	return nil
}

func (l Limits) checkPut(key, value []byte) error {
	if err := l.checkKey(key); err != nil {
		return err
	}
	if len(value) > l.MaxValueSize {
		return invalidArgument("value of %d bytes exceeds limit of %d", len(value), l.MaxValueSize)
	}
	return nil
}

// checkBatch validates every operation before any of them is applied.
func (l Limits) checkBatch(b *Batch) error {
	if b == nil {
		return invalidArgument("nil batch")
	}
	if b.Len() > l.MaxBatchOps {
		return invalidArgument("batch of %d operations exceeds limit of %d", b.Len(), l.MaxBatchOps)
	}
	if b.Size() > l.MaxBatchBytes {
		return invalidArgument("batch of %d bytes exceeds limit of %d", b.Size(), l.MaxBatchBytes)
	}
	var err error
	b.Range(func(op Op) bool {
		if op.Kind == OpPut {
			err = l.checkPut(op.Key, op.Value)
		} else {
			err = l.checkKey(op.Key)
		}
		return err == nil
	})
	return err
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendBadger
	}
	if c.GCInterval <= 0 {
		c.GCInterval = 5 * time.Minute
	}
	c.Limits = c.Limits.withDefaults()
	if c.Logger == nil {
		c.Logger = logging.NewNopLogger()
	}
	return c
}
