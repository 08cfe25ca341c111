// Package testutil holds helpers shared by engine tests and benchmarks.
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"flkv/internal/config"
	"flkv/internal/logging"
	"flkv/internal/storage"
)

// memTableSize keeps badger and pebble from reserving their default 64MB
// memtables for every test engine.
const memTableSize = 8 << 20

// EngineConfig returns an in-memory engine configuration for backend.
func EngineConfig(backend string) storage.Config {
	return storage.Config{
		Backend:      backend,
		InMemory:     true,
		MemTableSize: memTableSize,
	}
}

// PersistentEngineConfig returns a configuration rooted in a fresh temporary
// directory.
func PersistentEngineConfig(tb testing.TB, backend string) storage.Config {
	tb.Helper()

	return storage.Config{
		Backend:          backend,
		DataPath:         filepath.Join(tb.TempDir(), "store"),
		MemTableSize:     memTableSize,
		ValueLogFileSize: 1 << 20,
	}
}

// OpenEngine opens engine cfg and closes it when the test ends.
func OpenEngine(tb testing.TB, cfg storage.Config) storage.Engine {
	tb.Helper()

	engine, err := storage.Open(cfg)
	if err != nil {
		tb.Fatalf("Failed to open %s engine: %v", cfg.Backend, err)
	}

	tb.Cleanup(func() {
		engine.Close()
	})

	return engine
}

// TestStorageEngine opens an in-memory engine for backend.
func TestStorageEngine(tb testing.TB, backend string) storage.Engine {
	tb.Helper()
	return OpenEngine(tb, EngineConfig(backend))
}

// TestCachedEngine opens an in-memory engine for backend behind a read cache.
func TestCachedEngine(tb testing.TB, backend string, size int) *storage.CachedEngine {
	tb.Helper()

	inner, err := storage.NewEngine(EngineConfig(backend))
	if err != nil {
		tb.Fatalf("Failed to create %s engine: %v", backend, err)
	}

	cached := storage.NewCachedEngine(inner, storage.CacheConfig{Size: size})
	tb.Cleanup(func() {
		cached.Close()
	})

	return cached
}

// TestConfig returns a runtime configuration that keeps stores under a
// temporary directory.
func TestConfig(tb testing.TB, backend string) *config.Config {
	tb.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.Engine = backend
	cfg.Storage.DataDir = tb.TempDir()
	cfg.Storage.ValueLogGC = false
	cfg.Storage.MemTableSize = memTableSize
	cfg.Storage.ValueLogFileSize = 1 << 20
	cfg.Logging = logging.TestLoggingConfig()
	return cfg
}

// TestLogger creates a logger with minimal output.
func TestLogger() *logging.Logger {
	cfg := logging.TestLoggingConfig()
	return logging.NewLoggerWithWriter(&cfg, os.Stderr)
}

// PopulateTestData writes count keys under prefix and returns what it wrote.
func PopulateTestData(tb testing.TB, engine storage.Engine, prefix string, count int) map[string]string {
	tb.Helper()

	data := make(map[string]string, count)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("%s-key-%05d", prefix, i)
		value := fmt.Sprintf("%s-value-%d", prefix, i)

		if err := engine.Put([]byte(key), []byte(value)); err != nil {
			tb.Fatalf("Failed to put test data: %v", err)
		}

		data[key] = value
	}

	return data
}

// AssertKeyValue verifies that key holds expected.
func AssertKeyValue(tb testing.TB, engine storage.Engine, key, expected string) {
	tb.Helper()

	value, err := engine.Get([]byte(key))
	if err != nil {
		tb.Fatalf("Failed to get key %s: %v", key, err)
	}

	if !bytes.Equal(value, []byte(expected)) {
		tb.Errorf("Expected key %s to have value %q, got %q", key, expected, value)
	}
}

// AssertKeyMissing verifies that key is absent.
func AssertKeyMissing(tb testing.TB, engine storage.Engine, key string) {
	tb.Helper()

	value, err := engine.Get([]byte(key))
	if err == nil {
		tb.Errorf("Expected key %s to be missing, got %q", key, value)
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		tb.Fatalf("Unexpected error for key %s: %v", key, err)
	}
}

// AssertData verifies every key in data.
func AssertData(tb testing.TB, engine storage.Engine, data map[string]string) {
	tb.Helper()

	for key, value := range data {
		AssertKeyValue(tb, engine, key, value)
	}
}

// WaitForCondition polls condition until it holds or timeout passes.
func WaitForCondition(tb testing.TB, condition func() bool, timeout, checkInterval time.Duration) {
	tb.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(checkInterval)
	}

	tb.Fatalf("Condition not met within timeout %v", timeout)
}

// ConcurrentTest runs testFunc on concurrency goroutines and fails the test
// with the first returned error or panic.
func ConcurrentTest(tb testing.TB, concurrency int, testFunc func(worker int) error) {
	tb.Helper()

	var wg sync.WaitGroup
	errs := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs <- fmt.Errorf("worker %d panicked: %v", worker, r)
				}
			}()

			if err := testFunc(worker); err != nil {
				errs <- fmt.Errorf("worker %d: %w", worker, err)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	if err, ok := <-errs; ok {
		tb.Fatalf("Concurrent test failed: %v", err)
	}
}

// DataGenerator produces reproducible keys and values.
type DataGenerator struct {
	rand *rand.Rand
}

func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// Keys returns n distinct keys with prefix, in ascending order.
func (g *DataGenerator) Keys(prefix string, n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("%s-%08d-%s", prefix, i, g.randomString(8)))
	}
	return keys
}

// Value returns size random bytes.
func (g *DataGenerator) Value(size int) []byte {
	value := make([]byte, size)
	g.rand.Read(value)
	return value
}

// Batch stages n puts with values of valueSize bytes.
func (g *DataGenerator) Batch(prefix string, n, valueSize int) *storage.Batch {
	batch := storage.NewBatch()
	for _, key := range g.Keys(prefix, n) {
		batch.Put(key, g.Value(valueSize))
	}
	return batch
}

func (g *DataGenerator) randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[g.rand.Intn(len(charset))]
	}
	return string(result)
}
