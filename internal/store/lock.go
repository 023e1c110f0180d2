package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockHeld is returned by Acquire when another tracker already holds
// the session lock. Acquisition never waits or retries.
var ErrLockHeld = errors.New("session already active")

// LockName is the marker file whose presence means a tracker is active.
const LockName = "session.lock"

// LockInfo identifies the holder of a session lock.
type LockInfo struct {
	PID       int       `json:"pid"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is an acquired exclusive session lock.
type Lock struct {
	path string
}

// Acquire creates the lock marker in dir with O_EXCL semantics. It fails
// immediately with ErrLockHeld if the marker already exists.
func Acquire(dir string, info LockInfo) (*Lock, error) {
	path := filepath.Join(dir, LockName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	defer f.Close()

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write session lock: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write session lock: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock marker. Releasing an already-removed lock is
// not an error.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}

// ReadLock reads the lock marker in dir, if present. Returns nil with no
// error when no lock is held.
func ReadLock(dir string) (*LockInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, LockName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session lock: %w", err)
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse session lock: %w", err)
	}
	return &info, nil
}

// ForceUnlock removes the lock marker regardless of holder. Used by
// crash finalization after the holding process is gone.
func ForceUnlock(dir string) error {
	if err := os.Remove(filepath.Join(dir, LockName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session lock: %w", err)
	}
	return nil
}

// Path-lock tuning. A holder's critical section is one read-modify-
// rename, so contention resolves in milliseconds; the stale threshold
// only matters when a writer died inside the critical section.
const (
	pathLockSuffix  = ".lock"
	pathLockRetry   = 2 * time.Millisecond
	pathLockTimeout = 5 * time.Second
	pathLockStale   = 10 * time.Second
)

// WithPathLock runs fn while holding an exclusive marker next to the
// file at path, serializing writers across processes. Acquisition spins
// with a short backoff until the timeout; markers older than the stale
// threshold are assumed orphaned and broken.
func WithPathLock(path string, fn func() error) error {
	lockPath := path + pathLockSuffix
	deadline := time.Now().Add(pathLockTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("failed to acquire write lock for %s: %w", path, err)
		}
		if fi, statErr := os.Stat(lockPath); statErr == nil && time.Since(fi.ModTime()) > pathLockStale {
			os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for write lock on %s", path)
		}
		time.Sleep(pathLockRetry)
	}
	defer os.Remove(lockPath)
	return fn()
}
