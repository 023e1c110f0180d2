// Package summary reduces a baseline plus change log into deterministic
// aggregates. Summaries are recomputed from scratch at session stop and
// are fully determined by their inputs: same baseline and ledger, same
// bytes out.
package summary

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fakeyudi/auditrail/internal/baseline"
	"github.com/fakeyudi/auditrail/internal/ledger"
)

// HotFileLimit caps the hot-file ranking.
const HotFileLimit = 10

// HotFile is one entry of the touch-count ranking.
type HotFile struct {
	Path       string `json:"path"`
	TouchCount int    `json:"touch_count"`
}

// RenamedPath records one rename observed during the session. Size and
// mtime are filled from the working tree when it is still available.
type RenamedPath struct {
	OldPath  string     `json:"old_path"`
	NewPath  string     `json:"new_path"`
	NewHash  string     `json:"new_hash,omitempty"`
	NewSize  *uint64    `json:"new_size,omitempty"`
	NewMtime *time.Time `json:"new_mtime,omitempty"`
}

// SessionSummary is the deterministic end-of-session aggregate.
type SessionSummary struct {
	FilesAdded     int           `json:"files_added"`
	FilesModified  int           `json:"files_modified"`
	FilesDeleted   int           `json:"files_deleted"`
	FilesRenamed   int           `json:"files_renamed"`
	ChangedPaths   []string      `json:"changed_paths"`
	RenamedPaths   []RenamedPath `json:"renamed_paths"`
	HotFiles       []HotFile     `json:"hot_files"`
	LedgerHeadHash string        `json:"ledger_head_hash"`
	// TotalEvents counts filesystem change records (raw audit events
	// excluded); it feeds Classify.
	TotalEvents int `json:"total_events"`
	// SkippedLines counts unparseable ledger lines tolerated during
	// replay, for crash-recovery inspection.
	SkippedLines int `json:"skipped_lines,omitempty"`
}

// fileStat tracks one file's history across renames: renaming moves the
// stat to the new path so the history survives.
type fileStat struct {
	firstSeen int
	touches   int
	added     bool
	modified  bool
	deleted   bool
	renamed   bool
}

// Summarize replays the ledger at ledgerPath against the baseline and
// coalesces it by path. workdir may be empty; when set, rename targets
// are stat'ed to fill in size and mtime. The replay captures the chain
// head without asserting chain validity, so it works over logs that
// strict verification would reject.
func Summarize(b *baseline.Baseline, ledgerPath, workdir string) (*SessionSummary, error) {
	l := ledger.New(ledgerPath)
	entries, skipped, err := l.Read()
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*fileStat)
	order := 0
	lookup := func(path string) *fileStat {
		if st, ok := stats[path]; ok {
			return st
		}
		st := &fileStat{firstSeen: order}
		order++
		stats[path] = st
		return st
	}

	s := &SessionSummary{
		LedgerHeadHash: ledger.Genesis,
		SkippedLines:   skipped,
	}

	for i := range entries {
		e := &entries[i]
		s.LedgerHeadHash = e.LineHash
		if !e.IsFileOp() {
			continue
		}
		s.TotalEvents++

		switch e.Op {
		case ledger.OpCreate:
			st := lookup(e.Path)
			st.added = true
			st.touches++
		case ledger.OpModify:
			st := lookup(e.Path)
			st.modified = true
			st.touches++
		case ledger.OpDelete:
			st := lookup(e.Path)
			st.deleted = true
			st.touches++
		case ledger.OpRename:
			// Move the history to the new path so later events keep
			// accumulating on the same file.
			st := lookup(e.OldPath)
			delete(stats, e.OldPath)
			if existing, ok := stats[e.Path]; ok {
				// The target path was touched before; keep the earlier
				// first-seen slot and fold the histories together.
				existing.touches += st.touches + 1
				existing.added = existing.added || st.added
				existing.modified = existing.modified || st.modified
				existing.deleted = existing.deleted || st.deleted
				existing.renamed = true
			} else {
				st.renamed = true
				st.touches++
				stats[e.Path] = st
			}
			s.RenamedPaths = append(s.RenamedPaths, renamedPath(e, workdir))
		}
	}

	paths := make([]string, 0, len(stats))
	for path, st := range stats {
		paths = append(paths, path)
		if st.added {
			s.FilesAdded++
		}
		if st.modified {
			s.FilesModified++
		}
		if st.deleted {
			s.FilesDeleted++
		}
		if st.renamed {
			s.FilesRenamed++
		}
	}
	sort.Strings(paths)
	s.ChangedPaths = paths

	s.HotFiles = rankHotFiles(stats)
	return s, nil
}

func renamedPath(e *ledger.Entry, workdir string) RenamedPath {
	rp := RenamedPath{
		OldPath: e.OldPath,
		NewPath: e.Path,
		NewHash: e.NewHash,
	}
	if workdir != "" {
		if info, err := os.Stat(filepath.Join(workdir, filepath.FromSlash(e.Path))); err == nil {
			size := uint64(info.Size())
			mtime := info.ModTime().UTC()
			rp.NewSize = &size
			rp.NewMtime = &mtime
		}
	}
	return rp
}

// rankHotFiles returns the top paths by touch count, ties broken by
// first-seen order.
func rankHotFiles(stats map[string]*fileStat) []HotFile {
	type ranked struct {
		path string
		st   *fileStat
	}
	all := make([]ranked, 0, len(stats))
	for path, st := range stats {
		all = append(all, ranked{path, st})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].st.touches != all[j].st.touches {
			return all[i].st.touches > all[j].st.touches
		}
		return all[i].st.firstSeen < all[j].st.firstSeen
	})

	n := len(all)
	if n > HotFileLimit {
		n = HotFileLimit
	}
	hot := make([]HotFile, 0, n)
	for _, r := range all[:n] {
		hot = append(hot, HotFile{Path: r.path, TouchCount: r.st.touches})
	}
	return hot
}
