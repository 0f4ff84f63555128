package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"boxrun/internal/domain"
)

// ErrLocked is returned when another run already owns the status file.
var ErrLocked = errors.New("another run is writing this status file")

// StatusWriter publishes live snapshots to a JSON file for other processes
// to poll. It holds an exclusive lock on "<path>.lock" until Close, so two
// runs of the same project cannot interleave their status.
type StatusWriter struct {
	path string
	lock *flock.Flock

	mu      sync.Mutex
	lastErr error
}

// OpenStatusWriter takes the lock for path without blocking.
func OpenStatusWriter(path string) (*StatusWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create status dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to try lock on %s: %w", lock.Path(), err)
	}
	if !ok {
		lock.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return &StatusWriter{path: path, lock: lock}, nil
}

// Path is the status file.
func (w *StatusWriter) Path() string { return w.path }

// Observe writes snap. A failed write is remembered and returned by Err.
func (w *StatusWriter) Observe(snap domain.ProjectSnapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.write(snap); err != nil {
		w.lastErr = err
	}
}

// Finish writes the final snapshot.
func (w *StatusWriter) Finish(snap domain.ProjectSnapshot) {
	w.Observe(snap)
}

func (w *StatusWriter) write(snap domain.ProjectSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return atomicWrite(w.path, data)
}

// Err returns the last write error, if any.
func (w *StatusWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Close releases the lock. The status file stays behind for later reads.
func (w *StatusWriter) Close() error {
	if err := w.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", w.lock.Path(), err)
	}
	return nil
}

// ReadStatus loads the snapshot last written to path.
func ReadStatus(path string) (*domain.ProjectSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status file: %w", err)
	}
	var snap domain.ProjectSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}
	return &snap, nil
}

// Active reports whether a run currently holds the lock for path.
func Active(path string) (bool, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", lock.Path(), err)
	}
	defer lock.Close()
	return !ok, nil
}
