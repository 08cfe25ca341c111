package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// markerFile records which backend owns a store directory.
const markerFile = "FLKV-ENGINE"

var openPaths = struct {
	sync.Mutex
	paths map[string]struct{}
}{paths: make(map[string]struct{})}

// acquirePath claims dir for this process and returns its absolute form.
// A path held by another open engine cannot be claimed again.
func acquirePath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrOpen, dir, err)
	}

	openPaths.Lock()
	defer openPaths.Unlock()

	if _, held := openPaths.paths[abs]; held {
		return "", fmt.Errorf("%w: %s is already open", ErrOpen, abs)
	}
	openPaths.paths[abs] = struct{}{}
	return abs, nil
}

func releasePath(abs string) {
	openPaths.Lock()
	delete(openPaths.paths, abs)
	openPaths.Unlock()
}

// prepareDir creates dir when missing and checks that it is not owned by a
// different backend.
func prepareDir(dir, backend string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}

	owner, err := os.ReadFile(filepath.Join(dir, markerFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}

	owner = bytes.TrimSpace(owner)
	if string(owner) != backend {
		return fmt.Errorf("%w: %s holds a %s store, not %s", ErrOpen, dir, owner, backend)
	}
	return nil
}

func writeMarker(dir, backend string) error {
	path := filepath.Join(dir, markerFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(backend+"\n"), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return nil
}

// pathLocked releases the claimed path once the wrapped engine is closed.
type pathLocked struct {
	Engine
	path string
	once sync.Once
}

func (p *pathLocked) Close() error {
	err := p.Engine.Close()
	p.once.Do(func() { releasePath(p.path) })
	return err
}
