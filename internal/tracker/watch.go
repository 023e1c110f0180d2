package tracker

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/auditrail/internal/ledger"
)

// Watch starts a recursive fsnotify watcher on the tracker's working
// directory and feeds notifications into OnEvent until ctx is cancelled.
// The tracker must already be Watching. Watcher errors are non-fatal.
func Watch(ctx context.Context, t *Tracker) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch every subdirectory; fsnotify is not recursive on its own.
	if err := filepath.WalkDir(t.cfg.WorkDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(t.cfg.WorkDir, path)
		if relErr == nil && rel != "." && t.cfg.Rules.Match(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			now := time.Now()
			switch {
			case event.Has(fsnotify.Create):
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// New directories are watched, not recorded.
					_ = watcher.Add(event.Name)
					continue
				}
				t.OnEvent(Event{Op: ledger.OpCreate, Path: event.Name, At: now})
			case event.Has(fsnotify.Write):
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					continue
				}
				t.OnEvent(Event{Op: ledger.OpModify, Path: event.Name, At: now})
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				// fsnotify reports the old path of an OS-level rename as
				// Rename; content correlation rebuilds the pair.
				t.OnEvent(Event{Op: ledger.OpDelete, Path: event.Name, At: now})
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Keep watching; a dropped notification degrades the ledger,
			// it does not stop the session.
		}
	}
}
