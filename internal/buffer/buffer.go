// Package buffer provides the immutable byte span used for keys and values
// at every flkv boundary.
package buffer

import (
	"bytes"
	"encoding/hex"
	"hash/fnv"
)

// Buffer is an immutable view over a contiguous byte range. The zero value is
// a valid empty buffer.
type Buffer struct {
	data []byte
}

// Copy returns a Buffer holding its own copy of b.
func Copy(b []byte) Buffer {
	if len(b) == 0 {
		return Buffer{}
	}
	data := make([]byte, len(b))
	copy(data, b)
	return Buffer{data: data}
}

// Wrap returns a Buffer that borrows b. The caller must not modify b while
// the Buffer is in use.
func Wrap(b []byte) Buffer {
	return Buffer{data: b}
}

// FromString copies the bytes of s into a new Buffer.
func FromString(s string) Buffer {
	return Copy([]byte(s))
}

// Len returns the number of bytes in the buffer.
func (b Buffer) Len() int {
	return len(b.data)
}

// IsEmpty reports whether the buffer has zero length.
func (b Buffer) IsEmpty() bool {
	return len(b.data) == 0
}

// Bytes returns a copy of the buffer contents.
func (b Buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// View returns the underlying bytes without copying. The result must be
// treated as read-only.
func (b Buffer) View() []byte {
	return b.data
}

// Clone returns a Buffer that owns a private copy of the contents.
func (b Buffer) Clone() Buffer {
	return Copy(b.data)
}

// Equal reports whether both buffers have the same length and bytes.
func (b Buffer) Equal(other Buffer) bool {
	return bytes.Equal(b.data, other.data)
}

// Compare orders buffers by unsigned byte-wise lexicographic comparison; a
// proper prefix sorts before the longer buffer.
func (b Buffer) Compare(other Buffer) int {
	return bytes.Compare(b.data, other.data)
}

// Hash returns the 64-bit FNV-1a hash of the raw bytes.
func (b Buffer) Hash() uint64 {
	h := fnv.New64a()
	h.Write(b.data)
	return h.Sum64()
}

// String renders the contents as hex.
func (b Buffer) String() string {
	return hex.EncodeToString(b.data)
}
