package storage

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

func TestBatch_Operations(t *testing.T) {
	b := NewBatch()
	if b.Len() != 0 || b.Size() != 0 {
		t.Fatalf("new batch not empty: len=%d size=%d", b.Len(), b.Size())
	}

	key := []byte("k1")
	value := []byte("v1")
	b.Put(key, value)
	b.Delete([]byte("k2"))
	b.Put([]byte("k1"), []byte("v1-again"))

	// the batch owns its copies
	key[0] = 'X'
	value[0] = 'X'

	want := []struct {
		kind  OpKind
		key   string
		value string
	}{
		{OpPut, "k1", "v1"},
		{OpDelete, "k2", ""},
		{OpPut, "k1", "v1-again"},
	}

	var got []Op
	b.Range(func(op Op) bool {
		got = append(got, op)
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("Range() visited %d ops, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Kind != w.kind || string(got[i].Key) != w.key || string(got[i].Value) != w.value {
			t.Errorf("op %d = %s %q=%q, want %s %q=%q", i, got[i].Kind, got[i].Key, got[i].Value, w.kind, w.key, w.value)
		}
	}

	if size := b.Size(); size != len("k1v1")+len("k2")+len("k1v1-again") {
		t.Errorf("Size() = %d", size)
	}

	b.Clear()
	if b.Len() != 0 || b.Size() != 0 {
		t.Errorf("Clear() left len=%d size=%d", b.Len(), b.Size())
	}
}

func TestBatch_RangeStops(t *testing.T) {
	b := NewBatch()
	for i := 0; i < 5; i++ {
		b.Put([]byte{byte(i)}, nil)
	}

	visited := 0
	b.Range(func(Op) bool {
		visited++
		return visited < 2
	})
	if visited != 2 {
		t.Errorf("Range() visited %d ops after stop, want 2", visited)
	}
}

func TestOpKind_String(t *testing.T) {
	tests := map[OpKind]string{
		OpPut:     "put",
		OpDelete:  "delete",
		OpKind(9): "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("OpKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestEngine_WriteBatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, engine Engine) {
		if err := engine.Put([]byte("stale"), []byte("old")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		b := NewBatch()
		b.Put([]byte("a"), []byte("1"))
		b.Put([]byte("b"), []byte("2"))
		b.Put([]byte("a"), []byte("1-final"))
		b.Delete([]byte("stale"))
		b.Delete([]byte("c"))
		b.Put([]byte("c"), []byte{})

		if err := engine.Write(b, false); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if b.Len() != 6 {
			t.Errorf("Write() modified the batch: len=%d", b.Len())
		}

		tests := []struct {
			key   string
			want  string
			found bool
		}{
			{"a", "1-final", true},
			{"b", "2", true},
			{"c", "", true},
			{"stale", "", false},
		}
		for _, tt := range tests {
			got, err := engine.Get([]byte(tt.key))
			if !tt.found {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Get(%q) error = %v, want ErrNotFound", tt.key, err)
				}
				continue
			}
			if err != nil || string(got) != tt.want {
				t.Errorf("Get(%q) = %q, %v; want %q", tt.key, got, err, tt.want)
			}
		}
	})
}

func TestEngine_WriteEmptyBatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, engine Engine) {
		for _, sync := range []bool{false, true} {
			if err := engine.Write(NewBatch(), sync); err != nil {
				t.Errorf("Write(empty, sync=%v) error = %v", sync, err)
			}
		}
		if err := engine.Write(nil, false); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Write(nil) error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestEngine_RejectedBatchAppliesNothing(t *testing.T) {
	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			config := testConfig(backend)
			config.Limits = Limits{MaxKeySize: 16, MaxValueSize: 32, MaxBatchBytes: 128}
			engine, err := Open(config)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer engine.Close()

			if err := engine.Put([]byte("keep"), []byte("original")); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			oversizedValue := NewBatch()
			oversizedValue.Put([]byte("new"), []byte("fine"))
			oversizedValue.Delete([]byte("keep"))
			oversizedValue.Put([]byte("bad"), bytes.Repeat([]byte("v"), 33))

			oversizedBatch := NewBatch()
			for i := 0; i < 10; i++ {
				oversizedBatch.Put([]byte(fmt.Sprintf("bulk-%d", i)), bytes.Repeat([]byte("v"), 20))
			}
			oversizedBatch.Delete([]byte("keep"))

			for name, b := range map[string]*Batch{"value": oversizedValue, "batch": oversizedBatch} {
				if err := engine.Write(b, true); !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("%s: Write() error = %v, want ErrInvalidArgument", name, err)
				}
			}

			got, err := engine.Get([]byte("keep"))
			if err != nil || string(got) != "original" {
				t.Errorf("Get(keep) = %q, %v after rejected batches", got, err)
			}
			items, err := engine.List(nil, 0)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(items) != 1 {
				t.Errorf("rejected batches left %d keys, want 1", len(items))
			}
		})
	}
}

func TestEngine_BatchOpLimit(t *testing.T) {
	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			config := testConfig(backend)
			config.Limits = Limits{MaxBatchOps: 100}
			engine, err := Open(config)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer engine.Close()

			atLimit := NewBatch()
			for i := 0; i < 100; i++ {
				atLimit.Put([]byte(fmt.Sprintf("in-%03d", i)), nil)
			}
			if err := engine.Write(atLimit, true); err != nil {
				t.Fatalf("Write(100 ops) error = %v", err)
			}

			pastLimit := NewBatch()
			for i := 0; i < 101; i++ {
				pastLimit.Put([]byte(fmt.Sprintf("out-%03d", i)), nil)
			}
			if err := engine.Write(pastLimit, true); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Write(101 ops) error = %v, want ErrInvalidArgument", err)
			}

			items, err := engine.List(nil, 0)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(items) != 100 {
				t.Errorf("expected 100 keys, got %d", len(items))
			}
			if out, _ := engine.List([]byte("out-"), 0); len(out) != 0 {
				t.Errorf("rejected batch applied %d keys", len(out))
			}
		})
	}
}

// The default limits describe a batch every backend accepts, and anything
// past them is refused alike.
func TestEngine_DefaultLimitsAgree(t *testing.T) {
	limits := DefaultLimits()
	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			engine, err := Open(Config{Backend: backend, InMemory: true})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer engine.Close()

			b := NewBatch()
			for i := 0; i < limits.MaxBatchOps; i++ {
				b.Put([]byte(fmt.Sprintf("k%06d", i)), nil)
			}
			if err := engine.Write(b, true); err != nil {
				t.Fatalf("Write(%d ops) error = %v", b.Len(), err)
			}

			b.Put([]byte("one-more"), nil)
			if err := engine.Write(b, true); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Write(%d ops) error = %v, want ErrInvalidArgument", b.Len(), err)
			}
			if _, err := engine.Get([]byte("one-more")); !errors.Is(err, ErrNotFound) {
				t.Errorf("rejected batch was applied: %v", err)
			}
		})
	}
}

// TestEngine_BatchNeverPartiallyVisible commits {a=i, b=i} batches while a
// reader loads b before a. Seeing b ahead of a means half a batch was read.
func TestEngine_BatchNeverPartiallyVisible(t *testing.T) {
	for _, backend := range Backends {
		for _, cached := range []bool{false, true} {
			name := backend
			if cached {
				name += "/cached"
			}
			t.Run(name, func(t *testing.T) {
				inner, err := NewEngine(testConfig(backend))
				if err != nil {
					t.Fatalf("NewEngine() error = %v", err)
				}
				var engine Engine = inner
				if cached {
					engine = NewCachedEngine(inner, CacheConfig{Size: 16})
				}
				defer engine.Close()

				read := func(key string) int {
					value, err := engine.Get([]byte(key))
					if errors.Is(err, ErrNotFound) {
						return 0
					}
					if err != nil {
						t.Errorf("Get(%s) error = %v", key, err)
						return 0
					}
					n, err := strconv.Atoi(string(value))
					if err != nil {
						t.Errorf("Get(%s) = %q, not a counter", key, value)
					}
					return n
				}

				const rounds = 500
				var done atomic.Bool
				var wg sync.WaitGroup
				for r := 0; r < 2; r++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						for !done.Load() {
							b := read("b")
							if a := read("a"); a < b {
								t.Errorf("read a=%d after b=%d", a, b)
								return
							}
						}
					}()
				}

				for i := 1; i <= rounds; i++ {
					batch := NewBatch()
					batch.Put([]byte("a"), []byte(strconv.Itoa(i)))
					batch.Put([]byte("b"), []byte(strconv.Itoa(i)))
					if err := engine.Write(batch, false); err != nil {
						t.Errorf("Write(%d) error = %v", i, err)
						break
					}
				}
				done.Store(true)
				wg.Wait()

				if got := read("a"); got != rounds {
					t.Errorf("final a = %d, want %d", got, rounds)
				}
			})
		}
	}
}

func TestEngine_BatchReuseAfterClear(t *testing.T) {
	forEachBackend(t, func(t *testing.T, engine Engine) {
		b := NewBatch()
		b.Put([]byte("first"), []byte("1"))
		if err := engine.Write(b, false); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		b.Clear()
		b.Put([]byte("second"), []byte("2"))
		if err := engine.Write(b, false); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		items, err := engine.List(nil, 0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(items) != 2 {
			t.Errorf("expected 2 keys, got %d", len(items))
		}
	})
}

func TestEngine_ConcurrentBatches(t *testing.T) {
	forEachBackend(t, func(t *testing.T, engine Engine) {
		const writers = 4
		const perWriter = 25

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					b := NewBatch()
					b.Put([]byte(fmt.Sprintf("w%d-a-%02d", w, i)), []byte("x"))
					b.Put([]byte(fmt.Sprintf("w%d-b-%02d", w, i)), []byte("y"))
					if err := engine.Write(b, false); err != nil {
						errs <- err
						return
					}
				}
			}(w)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Fatalf("concurrent Write() error = %v", err)
		}

		items, err := engine.List(nil, 0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(items) != writers*perWriter*2 {
			t.Errorf("expected %d keys, got %d", writers*perWriter*2, len(items))
		}
	})
}

func BenchmarkEngine_WriteBatch(b *testing.B) {
	for _, backend := range Backends {
		b.Run(backend, func(b *testing.B) {
			engine, err := Open(testConfig(backend))
			if err != nil {
				b.Fatalf("Open() error = %v", err)
			}
			defer engine.Close()

			batch := NewBatch()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				batch.Clear()
				for j := 0; j < 100; j++ {
					batch.Put([]byte(fmt.Sprintf("bench-%d-%d", i, j)), []byte("value"))
				}
				if err := engine.Write(batch, false); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
