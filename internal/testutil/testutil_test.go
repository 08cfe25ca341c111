package testutil

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"flkv/internal/storage"
)

func TestTestStorageEngine(t *testing.T) {
	for _, backend := range storage.Backends {
		t.Run(backend, func(t *testing.T) {
			engine := TestStorageEngine(t, backend)

			if err := engine.Put([]byte("test-key"), []byte("test-value")); err != nil {
				t.Fatalf("Failed to put data: %v", err)
			}

			AssertKeyValue(t, engine, "test-key", "test-value")
			AssertKeyMissing(t, engine, "absent")

			if got := engine.Stats()["backend"]; got != backend {
				t.Errorf("Expected backend %s, got %v", backend, got)
			}
		})
	}
}

func TestPersistentEngineConfig(t *testing.T) {
	cfg := PersistentEngineConfig(t, storage.BackendPebble)
	if cfg.InMemory || cfg.DataPath == "" {
		t.Fatalf("Expected a persistent config, got %+v", cfg)
	}

	engine, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open engine: %v", err)
	}
	data := PopulateTestData(t, engine, "persist", 10)
	if err := engine.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}

	reopened := OpenEngine(t, cfg)
	AssertData(t, reopened, data)
}

func TestTestCachedEngine(t *testing.T) {
	engine := TestCachedEngine(t, storage.BackendLevelDB, 4)

	PopulateTestData(t, engine, "cached", 8)
	AssertKeyValue(t, engine, "cached-key-00007", "cached-value-7")

	stats := engine.CacheStats()
	if stats.Size > 4 {
		t.Errorf("Expected at most 4 cached entries, got %d", stats.Size)
	}
	if stats.Hits != 1 {
		t.Errorf("Expected 1 cache hit, got %d", stats.Hits)
	}
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig(t, storage.BackendBadger)

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid test config: %v", err)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Expected a data directory")
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Expected error log level, got %s", cfg.Logging.Level)
	}
}

func TestTestLogger(t *testing.T) {
	logger := TestLogger()
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}

	logger.InfoContext(context.Background(), "test message")
}

func TestPopulateTestData(t *testing.T) {
	engine := TestStorageEngine(t, storage.BackendPebble)

	data := PopulateTestData(t, engine, "users", 25)
	PopulateTestData(t, engine, "orders", 5)

	if len(data) != 25 {
		t.Fatalf("Expected 25 entries, got %d", len(data))
	}

	items, err := engine.List([]byte("users-"), 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(items) != 25 {
		t.Errorf("Expected 25 listed keys, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if bytes.Compare(items[i-1].Key, items[i].Key) >= 0 {
			t.Fatalf("Keys out of order at %d", i)
		}
	}
}

func TestConcurrentTest(t *testing.T) {
	engine := TestStorageEngine(t, storage.BackendBadger)
	var calls atomic.Int32

	ConcurrentTest(t, 8, func(worker int) error {
		calls.Add(1)
		key := fmt.Sprintf("worker-%d", worker)
		return engine.Put([]byte(key), []byte(key))
	})

	if calls.Load() != 8 {
		t.Errorf("Expected 8 calls, got %d", calls.Load())
	}
	for i := 0; i < 8; i++ {
		key := fmt.Sprintf("worker-%d", i)
		AssertKeyValue(t, engine, key, key)
	}
}

func TestWaitForCondition(t *testing.T) {
	start := time.Now()
	var ready atomic.Bool

	go func() {
		time.Sleep(20 * time.Millisecond)
		ready.Store(true)
	}()

	WaitForCondition(t, ready.Load, time.Second, 5*time.Millisecond)

	if time.Since(start) < 20*time.Millisecond {
		t.Error("Condition returned before it became true")
	}
}

func TestDataGenerator(t *testing.T) {
	gen1 := NewDataGenerator(42)
	gen2 := NewDataGenerator(42)

	keys1 := gen1.Keys("k", 50)
	keys2 := gen2.Keys("k", 50)
	for i := range keys1 {
		if !bytes.Equal(keys1[i], keys2[i]) {
			t.Fatalf("Expected same seed to give same keys at %d", i)
		}
		if i > 0 && bytes.Compare(keys1[i-1], keys1[i]) >= 0 {
			t.Fatalf("Expected ascending keys at %d", i)
		}
	}

	if v := gen1.Value(128); len(v) != 128 {
		t.Errorf("Expected 128 byte value, got %d", len(v))
	}

	batch := gen1.Batch("b", 10, 16)
	if batch.Len() != 10 {
		t.Errorf("Expected 10 staged ops, got %d", batch.Len())
	}

	engine := TestStorageEngine(t, storage.BackendPebble)
	if err := engine.Write(batch, false); err != nil {
		t.Fatalf("Failed to write batch: %v", err)
	}
	items, err := engine.List([]byte("b-"), 0)
	if err != nil || len(items) != 10 {
		t.Errorf("Expected 10 keys after batch, got %d (%v)", len(items), err)
	}
}
