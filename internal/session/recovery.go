package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fakeyudi/auditrail/internal/baseline"
	"github.com/fakeyudi/auditrail/internal/config"
	"github.com/fakeyudi/auditrail/internal/store"
	"github.com/fakeyudi/auditrail/internal/summary"
)

// LoadMeta reads the session metadata from a session directory.
func LoadMeta(dir string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session metadata: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse session metadata: %w", err)
	}
	return &m, nil
}

// FinalizeStale finishes a session whose tracker died without running
// Finalize: it completes interrupted writes, recomputes both summaries
// from whatever baseline and ledger survived, stamps the stop time and
// removes the lock. The ledger is left exactly as found — possibly
// short, never repaired.
func FinalizeStale(workdir string, cfg config.Config) (*summary.SessionSummary, *summary.SignalSummary, error) {
	workdir, err := filepath.Abs(workdir)
	if err != nil {
		return nil, nil, err
	}
	dir := ArtifactDir(workdir, cfg)

	for _, name := range []string{MetaFile, BaselineFile, LedgerFile, SummaryFile, SignalSummaryFile} {
		if err := store.Recover(filepath.Join(dir, name)); err != nil {
			return nil, nil, err
		}
	}

	meta, err := LoadMeta(dir)
	if err != nil {
		return nil, nil, err
	}

	b, err := baseline.Load(filepath.Join(dir, BaselineFile))
	if err != nil {
		// The crash may predate the baseline write; summarize against an
		// empty inventory rather than refusing to finalize.
		b = &baseline.Baseline{Files: map[string]baseline.FileEntry{}}
	}

	sum, sig, err := writeSummaries(b, dir, workdir)
	if err != nil {
		return nil, nil, err
	}

	if meta.StopTime == nil {
		now := time.Now().UTC()
		meta.StopTime = &now
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("serializing session metadata: %w", err)
		}
		if err := store.Write(filepath.Join(dir, MetaFile), append(data, '\n')); err != nil {
			return nil, nil, err
		}
	}

	if err := store.ForceUnlock(dir); err != nil {
		return nil, nil, err
	}
	return sum, sig, nil
}
