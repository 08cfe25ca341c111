package storage

// Every user key is stored behind a one-byte namespace so the empty key is
// representable in all backends and never collides with backend-reserved
// keys such as badger's "!badger!" prefix.
const (
	userKeyPrefix byte = 'u'
	metaKeyPrefix byte = 'm'
)

// flushMarkerKey is rewritten with a synced write to force the journal of
// backends without an explicit sync call onto stable storage.
var flushMarkerKey = []byte{metaKeyPrefix, 'f', 'l', 'u', 's', 'h'}

func encodeKey(key []byte) []byte {
	out := make([]byte, len(key)+1)
	out[0] = userKeyPrefix
	copy(out[1:], key)
	return out
}

func decodeKey(stored []byte) []byte {
	out := make([]byte, len(stored)-1)
	copy(out, stored[1:])
	return out
}

// prefixRange returns the [lower, upper) bounds covering every stored key
// whose user key starts with prefix.
func prefixRange(prefix []byte) (lower, upper []byte) {
	lower = encodeKey(prefix)
	upper = make([]byte, len(lower))
	copy(upper, lower)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return lower, upper[:i+1]
		}
	}
	// unreachable: the namespace byte is below 0xff
	return lower, nil
}

// userKeyRange covers the whole user namespace.
func userKeyRange() (lower, upper []byte) {
	return []byte{userKeyPrefix}, []byte{userKeyPrefix + 1}
}
