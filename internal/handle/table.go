// Package handle issues opaque, generation-tagged handles for resources owned
// by a caller. A handle is invalidated when its resource is removed, and a
// stale handle is never confused with a newer resource occupying the same
// slot.
package handle

import (
	"errors"
	"sync"
)

// ErrInvalidHandle is returned for the null handle and for handles whose
// resource has already been removed.
var ErrInvalidHandle = errors.New("invalid handle")

// Handle packs a slot index in the low 32 bits and the slot generation in the
// high 32 bits. The zero Handle is never issued.
type Handle uint64

// Null is the handle returned on failure.
const Null Handle = 0

func makeHandle(slot int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(uint32(slot)))
}

func (h Handle) slot() int {
	return int(uint32(h))
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

// IsNull reports whether h is the null handle.
func (h Handle) IsNull() bool {
	return h == Null
}

type entry[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Table maps handles to values. It is safe for concurrent use.
type Table[T any] struct {
	mu      sync.RWMutex
	entries []entry[T]
	free    []int
	live    int
}

// NewTable returns an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{}
}

// Insert stores v and returns its handle.
func (t *Table[T]) Insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var slot int
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		// generation starts at 1 so slot 0 never yields the null handle
		t.entries = append(t.entries, entry[T]{gen: 1})
		slot = len(t.entries) - 1
	}

	e := &t.entries[slot]
	e.value = v
	e.live = true
	t.live++

	return makeHandle(slot, e.gen)
}

// Get returns the value for h.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, err := t.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return e.value, nil
}

// Remove invalidates h and returns the value it referred to. Removing an
// already removed handle fails with ErrInvalidHandle.
func (t *Table[T]) Remove(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	e, err := t.lookup(h)
	if err != nil {
		return zero, err
	}

	v := e.value
	e.value = zero
	e.live = false
	e.gen++
	if e.gen == 0 {
		e.gen = 1
	}
	t.live--
	t.free = append(t.free, h.slot())

	return v, nil
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Drain removes every live handle and returns the values in slot order.
func (t *Table[T]) Drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	out := make([]T, 0, t.live)
	for i := range t.entries {
		e := &t.entries[i]
		if !e.live {
			continue
		}
		out = append(out, e.value)
		e.value = zero
		e.live = false
		e.gen++
		if e.gen == 0 {
			e.gen = 1
		}
		t.free = append(t.free, i)
	}
	t.live = 0

	return out
}

func (t *Table[T]) lookup(h Handle) (*entry[T], error) {
	if h.IsNull() {
		return nil, ErrInvalidHandle
	}
	slot := h.slot()
	if slot >= len(t.entries) {
		return nil, ErrInvalidHandle
	}
	e := &t.entries[slot]
	if !e.live || e.gen != h.generation() {
		return nil, ErrInvalidHandle
	}
	return e, nil
}
