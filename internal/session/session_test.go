package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fakeyudi/auditrail/internal/config"
	"github.com/fakeyudi/auditrail/internal/ledger"
	"github.com/fakeyudi/auditrail/internal/store"
	"github.com/fakeyudi/auditrail/internal/tracker"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.DedupWindowMs = 20
	cfg.CorrelationWindowMs = 50
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	workdir := t.TempDir()
	writeFile(t, filepath.Join(workdir, "existing.txt"), "already here\n")
	cfg := testConfig()

	s, err := Begin(workdir, cfg, "alice")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if s.Meta.ID == "" {
		t.Error("expected a generated session id")
	}
	if s.Meta.Operator != "alice" {
		t.Errorf("operator = %q, want alice", s.Meta.Operator)
	}

	if err := s.Snapshot(); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if _, ok := s.Baseline().Lookup("existing.txt"); !ok {
		t.Error("baseline missing existing.txt")
	}
	if err := s.StartTracking(); err != nil {
		t.Fatalf("StartTracking failed: %v", err)
	}

	added := filepath.Join(workdir, "new.txt")
	writeFile(t, added, "fresh content\n")
	s.Tracker().OnEvent(tracker.Event{Op: ledger.OpCreate, Path: added, At: time.Now()})

	writeFile(t, filepath.Join(workdir, "existing.txt"), "edited\n")
	s.Tracker().OnEvent(tracker.Event{
		Op:   ledger.OpModify,
		Path: filepath.Join(workdir, "existing.txt"),
		At:   time.Now(),
	})

	if err := s.StopTracking(); err != nil {
		t.Fatalf("StopTracking failed: %v", err)
	}
	sum, sig, err := s.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if sum.FilesAdded != 1 || sum.FilesModified != 1 {
		t.Errorf("summary added=%d modified=%d, want 1 and 1", sum.FilesAdded, sum.FilesModified)
	}
	if sig.FilesChanged != true {
		t.Error("signal summary should report files changed")
	}

	for _, name := range []string{MetaFile, BaselineFile, LedgerFile, SummaryFile, SignalSummaryFile} {
		if _, err := os.Stat(filepath.Join(s.Dir(), name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	res := ledger.Verify(filepath.Join(s.Dir(), LedgerFile))
	if !res.OK {
		t.Fatalf("ledger failed verification: %+v", res.FirstError)
	}
	// session_start + create + modify + session_end
	if res.RecordsChecked != 4 {
		t.Errorf("RecordsChecked = %d, want 4", res.RecordsChecked)
	}

	meta, err := LoadMeta(s.Dir())
	if err != nil {
		t.Fatalf("LoadMeta failed: %v", err)
	}
	if meta.StopTime == nil {
		t.Error("stop time not stamped")
	}
	info, err := store.ReadLock(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if info != nil {
		t.Error("lock still held after Finalize")
	}
}

func TestBeginRejectsConcurrentSession(t *testing.T) {
	workdir := t.TempDir()
	cfg := testConfig()

	s, err := Begin(workdir, cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Begin(workdir, cfg, ""); !errors.Is(err, store.ErrLockHeld) {
		t.Errorf("second Begin error = %v, want ErrLockHeld", err)
	}

	if err := s.Snapshot(); err != nil {
		t.Fatal(err)
	}
	if err := s.StopTracking(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, err := Begin(workdir, cfg, ""); err != nil {
		t.Errorf("Begin after Finalize failed: %v", err)
	}
}

func TestBaselineExcludesSessionDir(t *testing.T) {
	workdir := t.TempDir()
	cfg := testConfig()

	s, err := Begin(workdir, cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Snapshot(); err != nil {
		t.Fatal(err)
	}
	for rel := range s.Baseline().Files {
		if rel == cfg.SessionDir || strings.HasPrefix(rel, cfg.SessionDir+"/") {
			t.Errorf("baseline captured session artifact %s", rel)
		}
	}
}

func TestFinalizeStaleRecoversCrashedSession(t *testing.T) {
	workdir := t.TempDir()
	cfg := testConfig()

	s, err := Begin(workdir, cfg, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Snapshot(); err != nil {
		t.Fatal(err)
	}
	if err := s.StartTracking(); err != nil {
		t.Fatal(err)
	}

	added := filepath.Join(workdir, "orphan.txt")
	writeFile(t, added, "written before the crash\n")
	s.Tracker().OnEvent(tracker.Event{Op: ledger.OpCreate, Path: added, At: time.Now()})
	if err := s.Tracker().Stop(); err != nil {
		t.Fatal(err)
	}
	// Session abandoned here: no StopTracking marker, no Finalize, lock
	// still on disk.

	sum, sig, err := FinalizeStale(workdir, cfg)
	if err != nil {
		t.Fatalf("FinalizeStale failed: %v", err)
	}
	if sum.FilesAdded != 1 {
		t.Errorf("FilesAdded = %d, want 1", sum.FilesAdded)
	}
	if sig.Severity != "LOW" {
		t.Errorf("severity = %s, want LOW", sig.Severity)
	}

	meta, err := LoadMeta(ArtifactDir(workdir, cfg))
	if err != nil {
		t.Fatal(err)
	}
	if meta.StopTime == nil {
		t.Error("FinalizeStale did not stamp a stop time")
	}

	if _, err := Begin(workdir, cfg, ""); err != nil {
		t.Errorf("Begin after FinalizeStale failed: %v", err)
	}
}

func TestFinalizeStaleWithoutSession(t *testing.T) {
	workdir := t.TempDir()
	if _, _, err := FinalizeStale(workdir, testConfig()); !errors.Is(err, ErrNoSession) {
		t.Errorf("error = %v, want ErrNoSession", err)
	}
}

func TestAppendRawBeforeTracking(t *testing.T) {
	workdir := t.TempDir()
	cfg := testConfig()

	s, err := Begin(workdir, cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AppendRaw("note", map[string]any{"text": "pre-baseline remark"}); err != nil {
		t.Fatalf("AppendRaw failed: %v", err)
	}
	if err := s.Snapshot(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Finalize(); err != nil {
		t.Fatal(err)
	}

	res := ledger.Verify(filepath.Join(s.Dir(), LedgerFile))
	if !res.OK || res.RecordsChecked != 1 {
		t.Errorf("verify = ok:%v checked:%d, want clean single record", res.OK, res.RecordsChecked)
	}
}
