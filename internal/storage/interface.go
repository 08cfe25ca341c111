package storage

// Engine is an ordered key-value store with atomic batches. Implementations
// are safe for concurrent use.
type Engine interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error

	// Write applies every operation in batch atomically. When sync is set the
	// writes are durable before Write returns. The batch is left untouched.
	Write(batch *Batch, sync bool) error

	// List returns up to limit pairs whose key starts with prefix, in
	// ascending key order. A limit of zero or less means no limit.
	List(prefix []byte, limit int) ([]KeyValue, error)

	// Flush makes every previously applied write durable.
	Flush() error
	Compact() error
	Close() error
	Stats() map[string]interface{}
}

// KeyValue represents a key-value pair
type KeyValue struct {
	Key   []byte
	Value []byte
}
