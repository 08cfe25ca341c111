package storage

// OpKind distinguishes batch operations.
type OpKind uint8

const (
	OpPut OpKind = iota
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is a single pending batch operation.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// Batch is an ordered list of pending writes. Operations apply in insertion
// order, so a later operation on a key overrides an earlier one. A Batch is
// not safe for concurrent mutation and never touches an engine until passed
// to Engine.Write.
type Batch struct {
	ops  []Op
	size int
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put appends an upsert. key and value are copied.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, Op{Kind: OpPut, Key: clone(key), Value: clone(value)})
	b.size += len(key) + len(value)
}

// Delete appends a tombstone for key. key is copied.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, Op{Kind: OpDelete, Key: clone(key)})
	b.size += len(key)
}

// Clear discards every pending operation so the batch can be reused.
func (b *Batch) Clear() {
	clear(b.ops)
	b.ops = b.ops[:0]
	b.size = 0
}

// Len returns the number of pending operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Size returns the total number of key and value bytes pending.
func (b *Batch) Size() int {
	return b.size
}

// Range calls fn for each operation in insertion order until fn returns
// false. fn must not retain or modify the slices it is given.
func (b *Batch) Range(fn func(op Op) bool) {
	for _, op := range b.ops {
		if !fn(op) {
			return
		}
	}
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
