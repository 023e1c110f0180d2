// Package baseline takes the content-addressed inventory of a working
// directory at session start. The inventory is written once and read
// back by the tracker (for delete hashes) and the summarizer.
package baseline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fakeyudi/auditrail/internal/canon"
	"github.com/fakeyudi/auditrail/internal/ignore"
	"github.com/fakeyudi/auditrail/internal/store"
)

// OversizeHash is recorded instead of a content hash for files above the
// size limit. It is deliberately not valid hex so it can never collide
// with a real digest or satisfy a rename correlation.
const OversizeHash = "!oversize"

// DefaultOversizeLimit bounds how large a file gets fully hashed.
const DefaultOversizeLimit int64 = 5 << 20 // 5 MiB

// FileEntry is one file's inventory record. Immutable once written.
type FileEntry struct {
	RelativePath string    `json:"relative_path"`
	Size         uint64    `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ContentHash  string    `json:"content_hash"`
}

// Baseline is the inventory of a directory tree, keyed by relative path.
type Baseline struct {
	CreatedAt time.Time            `json:"created_at"`
	Files     map[string]FileEntry `json:"files"`
}

// Options configures a snapshot walk.
type Options struct {
	// OversizeLimit in bytes; files larger than this get OversizeHash.
	// Zero means DefaultOversizeLimit.
	OversizeLimit int64
}

func (o Options) limit() int64 {
	if o.OversizeLimit <= 0 {
		return DefaultOversizeLimit
	}
	return o.OversizeLimit
}

// Snapshot walks root and records every retained file. Paths matching
// rules and directories carrying the skip sentinel are excluded. A file
// that cannot be read is silently omitted; only a totally unwalkable
// root is an error.
func Snapshot(root string, rules *ignore.Rules, opts Options) (*Baseline, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("snapshot root: %w", err)
	}

	b := &Baseline{
		CreatedAt: time.Now().UTC(),
		Files:     make(map[string]FileEntry),
	}
	limit := opts.limit()

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil // skip unreadable entries
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rules.Match(rel) || rules.Match(rel+"/") || ignore.HasSkipSentinel(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || rules.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		hash, err := HashFile(path, limit)
		if err != nil {
			return nil // unreadable; omit rather than abort
		}
		b.Files[rel] = FileEntry{
			RelativePath: rel,
			Size:         uint64(info.Size()),
			LastModified: info.ModTime().UTC(),
			ContentHash:  hash,
		}
		return nil
	})

	return b, nil
}

// Lookup returns the baseline entry for a relative path.
func (b *Baseline) Lookup(rel string) (FileEntry, bool) {
	e, ok := b.Files[filepath.ToSlash(rel)]
	return e, ok
}

// Save writes the baseline as pretty JSON through the atomic store.
func (b *Baseline) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize baseline: %w", err)
	}
	return store.Write(path, append(data, '\n'))
}

// Load reads a baseline written by Save.
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse baseline: %w", err)
	}
	if b.Files == nil {
		b.Files = make(map[string]FileEntry)
	}
	return &b, nil
}

// HashFile returns the SHA-256 hex digest of the file at path, or
// OversizeHash when the file exceeds limit bytes. The size check uses
// stat so oversize files are never read.
func HashFile(path string, limit int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > limit {
		return OversizeHash, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return canon.Digest(data), nil
}
