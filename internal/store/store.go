// Package store provides atomic write-temp-then-rename persistence with
// crash recovery, plus the exclusive session lock. Every artifact the
// engine owns is written through here so a crash can never leave a torn
// file behind.
package store

import (
	"errors"
	"fmt"
	"os"
)

// tmpSuffix is deterministic so Recover can find an orphaned temp file
// after a crash.
const tmpSuffix = ".tmp"

// Write persists data to path atomically: it writes to path+".tmp" and
// renames over path. On rename failure it removes a stale destination
// and retries the rename once.
func Write(path string, data []byte) error {
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to persist %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		// A stale destination can block the rename on some platforms.
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			os.Remove(tmp)
			return fmt.Errorf("failed to persist %s: %w", path, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("failed to persist %s: %w", path, err)
		}
	}
	return nil
}

// Recover completes an interrupted Write for path. If path+".tmp" exists
// and the destination is missing or older than the temp file, the rename
// is finished; otherwise the orphaned temp file is discarded. Must run
// before the first read of any artifact written through this package.
func Recover(path string) error {
	tmp := path + tmpSuffix
	tmpInfo, err := os.Stat(tmp)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to inspect %s: %w", tmp, err)
	}

	destInfo, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Crash happened between temp write and rename.
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("failed to recover %s: %w", path, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}

	if tmpInfo.ModTime().After(destInfo.ModTime()) {
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("failed to recover %s: %w", path, err)
		}
		return nil
	}

	// The completed write survived; drop the leftover temp file.
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to discard %s: %w", tmp, err)
	}
	return nil
}

// Append adds data to the end of path. It is implemented as read +
// concatenate + Write rather than an OS-level append, so a crash
// mid-append cannot leave a half-written line in the file.
func Append(path string, data []byte) error {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	combined := make([]byte, 0, len(existing)+len(data))
	combined = append(combined, existing...)
	combined = append(combined, data...)
	return Write(path, combined)
}
