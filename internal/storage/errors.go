package storage

import (
	"errors"
	"fmt"

	"flkv/internal/handle"
)

var (
	// ErrNotFound is the lookup-miss outcome. It is not a failure.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidArgument is returned for keys, values or batches over the
	// configured limits.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOpen is returned when a store cannot be opened: the location is
	// inaccessible, corrupt, already open, or belongs to another backend.
	ErrOpen = errors.New("cannot open store")

	// ErrIO is returned when the backend fails to write or sync.
	ErrIO = errors.New("storage I/O failure")

	// ErrClosed is returned by every operation on a closed engine.
	ErrClosed = errors.New("database is closed")

	// ErrInvalidHandle is returned by the handle layer for destroyed or null
	// handles.
	ErrInvalidHandle = handle.ErrInvalidHandle
)

func openError(backend string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOpen, backend, err)
}

func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
