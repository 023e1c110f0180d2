// Package session owns the lifecycle of one recording session: lock
// acquisition, baseline snapshot, tracking, and finalization. There is
// no process-global session; callers hold the *Session they began.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/auditrail/internal/baseline"
	"github.com/fakeyudi/auditrail/internal/config"
	"github.com/fakeyudi/auditrail/internal/ignore"
	"github.com/fakeyudi/auditrail/internal/ledger"
	"github.com/fakeyudi/auditrail/internal/store"
	"github.com/fakeyudi/auditrail/internal/summary"
	"github.com/fakeyudi/auditrail/internal/tracker"
)

// ErrNoSession is returned when no session artifacts exist on disk.
var ErrNoSession = errors.New("no session found")

// Artifact file names inside the session directory. Other tools read
// these; the names are a contract.
const (
	MetaFile          = "session.json"
	BaselineFile      = "baseline.json"
	LedgerFile        = "changes.log"
	SummaryFile       = "session_summary.json"
	SignalSummaryFile = "signal_summary.json"
)

// Meta is the persisted session metadata.
type Meta struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	StopTime  *time.Time `json:"stop_time,omitempty"`
	WorkDir   string     `json:"work_dir"`
	Operator  string     `json:"operator,omitempty"`
}

// Session is one owned recording session.
type Session struct {
	Meta Meta

	cfg      config.Config
	dir      string
	rules    *ignore.Rules
	baseline *baseline.Baseline
	ledger   *ledger.Ledger
	tracker  *tracker.Tracker
	lock     *store.Lock
}

// Dir returns the session artifact directory.
func (s *Session) Dir() string { return s.dir }

// Ledger returns the session's chained change log.
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }

// Baseline returns the inventory taken at session start.
func (s *Session) Baseline() *baseline.Baseline { return s.baseline }

// Warnings returns non-fatal tracking problems collected so far.
func (s *Session) Warnings() []string {
	if s.tracker == nil {
		return nil
	}
	return s.tracker.Warnings()
}

// ArtifactDir returns the session directory for a working directory
// under the given configuration.
func ArtifactDir(workdir string, cfg config.Config) string {
	return filepath.Join(workdir, cfg.SessionDir)
}

// Begin acquires the session lock, recovers any interrupted artifact
// writes and starts a fresh ledger. It fails with store.ErrLockHeld
// when a tracker is already active on workdir.
func Begin(workdir string, cfg config.Config, operator string) (*Session, error) {
	workdir, err := filepath.Abs(workdir)
	if err != nil {
		return nil, err
	}
	dir := ArtifactDir(workdir, cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}

	meta := Meta{
		ID:        uuid.New().String(),
		StartTime: time.Now().UTC(),
		WorkDir:   workdir,
		Operator:  operator,
	}
	lock, err := store.Acquire(dir, store.LockInfo{
		PID:       os.Getpid(),
		SessionID: meta.ID,
		StartedAt: meta.StartTime,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{Meta: meta, cfg: cfg, dir: dir, lock: lock}

	// Finish any write a crashed predecessor left half done, then start
	// this session's artifacts from scratch.
	for _, name := range []string{MetaFile, BaselineFile, LedgerFile, SummaryFile, SignalSummaryFile} {
		if err := store.Recover(filepath.Join(dir, name)); err != nil {
			lock.Release()
			return nil, err
		}
	}
	for _, name := range []string{LedgerFile, SummaryFile, SignalSummaryFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			lock.Release()
			return nil, fmt.Errorf("clearing previous session artifact: %w", err)
		}
	}

	rules, err := ignore.Load(workdir, cfg.IgnorePatterns, cfg.IgnoreFile)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("loading ignore rules: %w", err)
	}
	// The session directory must never audit its own writes.
	rules.Add(cfg.SessionDir, cfg.SessionDir+"/**")
	s.rules = rules

	s.ledger = ledger.New(filepath.Join(dir, LedgerFile))

	if err := s.saveMeta(); err != nil {
		lock.Release()
		return nil, err
	}
	return s, nil
}

// Snapshot walks the working directory and persists the baseline
// inventory. Must run before StartTracking.
func (s *Session) Snapshot() error {
	b, err := baseline.Snapshot(s.Meta.WorkDir, s.rules, baseline.Options{
		OversizeLimit: s.cfg.OversizeLimitBytes,
	})
	if err != nil {
		return fmt.Errorf("snapshotting baseline: %w", err)
	}
	if err := b.Save(filepath.Join(s.dir, BaselineFile)); err != nil {
		return err
	}
	s.baseline = b
	return nil
}

// StartTracking moves the change pipeline to Watching and appends the
// session-start marker to the chain.
func (s *Session) StartTracking() error {
	if s.baseline == nil {
		return errors.New("snapshot must run before tracking starts")
	}
	s.tracker = tracker.New(tracker.Config{
		WorkDir:           s.Meta.WorkDir,
		Rules:             s.rules,
		Baseline:          s.baseline,
		Ledger:            s.ledger,
		OversizeLimit:     s.cfg.OversizeLimitBytes,
		DedupWindow:       s.cfg.DedupWindow(),
		CorrelationWindow: s.cfg.CorrelationWindow(),
	})
	if err := s.tracker.Start(); err != nil {
		return err
	}
	return s.AppendRaw("session_start", map[string]any{
		"session_id": s.Meta.ID,
		"operator":   s.Meta.Operator,
	})
}

// Tracker exposes the change pipeline for the watch source.
func (s *Session) Tracker() *tracker.Tracker { return s.tracker }

// AppendRaw chains a non-filesystem audit event into the ledger.
func (s *Session) AppendRaw(eventType string, payload map[string]any) error {
	if s.tracker != nil {
		return s.tracker.AppendRaw(eventType, payload)
	}
	_, err := s.ledger.Append(ledger.Record{
		Op:        ledger.OpRaw,
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	return err
}

// StopTracking stops intake, flushes pending deletes as plain delete
// records and appends the session-end marker.
func (s *Session) StopTracking() error {
	if s.tracker == nil {
		return nil
	}
	if err := s.tracker.Stop(); err != nil {
		return err
	}
	return s.AppendRaw("session_end", map[string]any{"session_id": s.Meta.ID})
}

// Finalize recomputes both summaries from the baseline and ledger,
// persists them, stamps the stop time and releases the lock. Stop order
// matters: a crash before the lock release leaves a verifiable ledger
// plus a held lock, which `auditrail stop` can clean up later.
func (s *Session) Finalize() (*summary.SessionSummary, *summary.SignalSummary, error) {
	b := s.baseline
	if b == nil {
		// Finalize before Snapshot: summarize against an empty inventory.
		b = &baseline.Baseline{Files: map[string]baseline.FileEntry{}}
	}
	sum, sig, err := writeSummaries(b, s.dir, s.Meta.WorkDir)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	s.Meta.StopTime = &now
	if err := s.saveMeta(); err != nil {
		return nil, nil, err
	}

	if err := s.lock.Release(); err != nil {
		return nil, nil, err
	}
	return sum, sig, nil
}

func (s *Session) saveMeta() error {
	data, err := json.MarshalIndent(s.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing session metadata: %w", err)
	}
	return store.Write(filepath.Join(s.dir, MetaFile), append(data, '\n'))
}

// writeSummaries computes and persists both summary artifacts.
func writeSummaries(b *baseline.Baseline, dir, workdir string) (*summary.SessionSummary, *summary.SignalSummary, error) {
	sum, err := summary.Summarize(b, filepath.Join(dir, LedgerFile), workdir)
	if err != nil {
		return nil, nil, err
	}
	sig := summary.Classify(sum, sum.TotalEvents)

	sumData, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("serializing summary: %w", err)
	}
	if err := store.Write(filepath.Join(dir, SummaryFile), append(sumData, '\n')); err != nil {
		return nil, nil, err
	}

	sigData, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("serializing signal summary: %w", err)
	}
	if err := store.Write(filepath.Join(dir, SignalSummaryFile), append(sigData, '\n')); err != nil {
		return nil, nil, err
	}
	return sum, &sig, nil
}
