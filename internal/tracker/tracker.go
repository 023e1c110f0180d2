// Package tracker turns raw filesystem notifications into deduplicated,
// rename-aware, content-addressed change records and appends them to the
// session ledger. All appends happen on a single goroutine; OnEvent is
// the only ingestion point.
package tracker

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fakeyudi/auditrail/internal/baseline"
	"github.com/fakeyudi/auditrail/internal/ignore"
	"github.com/fakeyudi/auditrail/internal/ledger"
)

// State is the tracker lifecycle: Idle until Start, Watching while live,
// Stopped after Stop. A stopped tracker cannot be restarted.
type State int

const (
	StateIdle State = iota
	StateWatching
	StateStopped
)

// Default pipeline windows.
const (
	DefaultDedupWindow       = 250 * time.Millisecond
	DefaultCorrelationWindow = 1000 * time.Millisecond
	DefaultSweepInterval     = 100 * time.Millisecond
)

// correlationSkew is how far a create may be stamped *before* its paired
// delete and still correlate into a rename. Watch backends do not
// guarantee ordering of the two halves, so a hair of negative skew is
// normal.
const correlationSkew = 10 * time.Millisecond

// Event is one raw watch notification. Op must be OpCreate, OpModify or
// OpDelete; renames are derived, never ingested.
type Event struct {
	Op   ledger.Op
	Path string // absolute
	At   time.Time
}

// Config wires a Tracker to its session.
type Config struct {
	WorkDir  string
	Rules    *ignore.Rules
	Baseline *baseline.Baseline
	Ledger   *ledger.Ledger

	OversizeLimit int64

	// Windows default to the package constants when zero. Tests shrink
	// them to keep runs fast.
	DedupWindow       time.Duration
	CorrelationWindow time.Duration
	SweepInterval     time.Duration
}

func (c *Config) applyDefaults() {
	if c.OversizeLimit <= 0 {
		c.OversizeLimit = baseline.DefaultOversizeLimit
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = DefaultDedupWindow
	}
	if c.CorrelationWindow <= 0 {
		c.CorrelationWindow = DefaultCorrelationWindow
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

// message is what flows through the single-writer funnel: either a watch
// event or a raw record to chain as-is.
type message struct {
	ev  *Event
	raw *ledger.Record
}

type dedupKey struct {
	path string
	op   ledger.Op
}

// pendingDelete sits in the correlation arena waiting for a matching
// create, keyed by old content hash.
type pendingDelete struct {
	rel     string
	oldHash string
	seenAt  time.Time
}

// Tracker is the per-session change pipeline.
type Tracker struct {
	cfg Config

	mu     sync.Mutex
	state  State
	intake chan message
	done   chan struct{}

	// Owned by the run goroutine; no locking needed.
	lastSeen map[dedupKey]time.Time
	pending  map[string][]pendingDelete // keyed by old content hash

	warnMu   sync.Mutex
	warnings []string
}

// New returns an Idle tracker.
func New(cfg Config) *Tracker {
	cfg.applyDefaults()
	return &Tracker{
		cfg:      cfg,
		intake:   make(chan message, 256),
		done:     make(chan struct{}),
		lastSeen: make(map[dedupKey]time.Time),
		pending:  make(map[string][]pendingDelete),
	}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start moves the tracker to Watching and launches the single writer.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateWatching:
		return errors.New("tracker already watching")
	case StateStopped:
		return errors.New("tracker already stopped")
	}
	t.state = StateWatching
	go t.run()
	return nil
}

// OnEvent ingests one raw watch notification. Events arriving while the
// tracker is not Watching are dropped. Delivery is best effort: a full
// intake queue drops the event and records a warning rather than
// blocking the watch source.
func (t *Tracker) OnEvent(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	// The lock is held across the send so Stop cannot close the intake
	// channel between the state check and the send.
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateWatching {
		return
	}
	select {
	case t.intake <- message{ev: &ev}:
	default:
		t.warn(fmt.Sprintf("event queue full, dropped %s %s", ev.Op, ev.Path))
	}
}

// AppendRaw funnels a non-filesystem audit event through the same
// single writer, keeping all appends serialized.
func (t *Tracker) AppendRaw(eventType string, payload map[string]any) error {
	rec := ledger.Record{
		Op:        ledger.OpRaw,
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateWatching {
		// No writer running; append directly.
		_, err := t.cfg.Ledger.Append(rec)
		return err
	}
	// The run goroutine never takes the lock, so it keeps draining the
	// channel while we hold it; this send cannot deadlock.
	t.intake <- message{raw: &rec}
	return nil
}

// Stop refuses further events, drains the queue, flushes every pending
// delete as a plain Delete record, and returns once the ledger is quiet.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	wasWatching := t.state == StateWatching
	t.state = StateStopped
	t.mu.Unlock()

	if !wasWatching {
		return nil
	}
	close(t.intake)
	<-t.done
	return nil
}

// Warnings returns non-fatal problems hit while tracking (unhashable
// files, dropped events). Safe to call after Stop.
func (t *Tracker) Warnings() []string {
	t.warnMu.Lock()
	defer t.warnMu.Unlock()
	out := make([]string, len(t.warnings))
	copy(out, t.warnings)
	return out
}

func (t *Tracker) warn(msg string) {
	t.warnMu.Lock()
	t.warnings = append(t.warnings, msg)
	t.warnMu.Unlock()
}

// run is the single writer: it owns every ledger append and all pipeline
// state. The ticker drives expiry of pending deletes so an unmatched
// delete is committed even when no further events arrive.
func (t *Tracker) run() {
	defer close(t.done)

	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-t.intake:
			if !ok {
				t.flushPending(time.Time{}) // flush everything
				return
			}
			if msg.raw != nil {
				t.append(*msg.raw)
				continue
			}
			t.handle(*msg.ev)
		case now := <-ticker.C:
			t.flushPending(now.Add(-t.cfg.CorrelationWindow))
			t.pruneDedup(now)
		}
	}
}

func (t *Tracker) handle(ev Event) {
	rel, ok := t.relPath(ev.Path)
	if !ok || t.cfg.Rules.Match(rel) {
		return
	}

	// Save-storms produce repeated identical notifications; collapse
	// (path, op) pairs seen inside the dedup window.
	key := dedupKey{path: rel, op: ev.Op}
	if last, seen := t.lastSeen[key]; seen && ev.At.Sub(last) < t.cfg.DedupWindow {
		return
	}
	t.lastSeen[key] = ev.At

	switch ev.Op {
	case ledger.OpCreate:
		t.handleCreate(rel, ev)
	case ledger.OpModify:
		hash := t.hash(ev.Path)
		t.append(ledger.Record{
			Op:        ledger.OpModify,
			Path:      rel,
			NewHash:   hash,
			Timestamp: ev.At.UTC(),
		})
	case ledger.OpDelete:
		t.handleDelete(rel, ev)
	}
}

func (t *Tracker) handleCreate(rel string, ev Event) {
	hash := t.hash(ev.Path)

	// A create whose content matches a recently deleted file is the
	// second half of a rename. The oversize sentinel and an absent hash
	// never correlate.
	if hash != "" && hash != baseline.OversizeHash {
		if old, ok := t.takePending(hash, ev.At); ok {
			t.append(ledger.Record{
				Op:        ledger.OpRename,
				OldPath:   old.rel,
				Path:      rel,
				NewHash:   hash,
				Timestamp: ev.At.UTC(),
			})
			return
		}
	}

	t.append(ledger.Record{
		Op:        ledger.OpCreate,
		Path:      rel,
		NewHash:   hash,
		Timestamp: ev.At.UTC(),
	})
}

func (t *Tracker) handleDelete(rel string, ev Event) {
	// The file is gone; the only known hash is the baseline's.
	var oldHash string
	if entry, ok := t.cfg.Baseline.Lookup(rel); ok {
		oldHash = entry.ContentHash
	}

	// Only a real content hash can correlate with a later create.
	if oldHash == "" || oldHash == baseline.OversizeHash {
		t.append(ledger.Record{
			Op:        ledger.OpDelete,
			Path:      rel,
			OldHash:   oldHash,
			Timestamp: ev.At.UTC(),
		})
		return
	}

	t.pending[oldHash] = append(t.pending[oldHash], pendingDelete{
		rel:     rel,
		oldHash: oldHash,
		seenAt:  ev.At,
	})
}

// takePending pops the oldest pending delete with the given hash that is
// still inside the correlation window. The create may be stamped up to
// correlationSkew before the delete.
func (t *Tracker) takePending(hash string, at time.Time) (pendingDelete, bool) {
	queue := t.pending[hash]
	for i, pd := range queue {
		if at.Sub(pd.seenAt) <= t.cfg.CorrelationWindow && pd.seenAt.Sub(at) <= correlationSkew {
			rest := append(queue[:i:i], queue[i+1:]...)
			if len(rest) == 0 {
				delete(t.pending, hash)
			} else {
				t.pending[hash] = rest
			}
			return pd, true
		}
	}
	return pendingDelete{}, false
}

// flushPending commits pending deletes seen at or before cutoff as plain
// Delete records. A zero cutoff flushes everything (used at Stop).
// Flush order is deterministic: by observation time, then path.
func (t *Tracker) flushPending(cutoff time.Time) {
	var expired []pendingDelete
	for hash, queue := range t.pending {
		var kept []pendingDelete
		for _, pd := range queue {
			if cutoff.IsZero() || !pd.seenAt.After(cutoff) {
				expired = append(expired, pd)
			} else {
				kept = append(kept, pd)
			}
		}
		if len(kept) == 0 {
			delete(t.pending, hash)
		} else {
			t.pending[hash] = kept
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		if !expired[i].seenAt.Equal(expired[j].seenAt) {
			return expired[i].seenAt.Before(expired[j].seenAt)
		}
		return expired[i].rel < expired[j].rel
	})
	for _, pd := range expired {
		t.append(ledger.Record{
			Op:        ledger.OpDelete,
			Path:      pd.rel,
			OldHash:   pd.oldHash,
			Timestamp: pd.seenAt.UTC(),
		})
	}
}

func (t *Tracker) pruneDedup(now time.Time) {
	for key, at := range t.lastSeen {
		if now.Sub(at) > t.cfg.DedupWindow {
			delete(t.lastSeen, key)
		}
	}
}

func (t *Tracker) append(rec ledger.Record) {
	if _, err := t.cfg.Ledger.Append(rec); err != nil {
		// A failed append degrades to an incomplete ledger, never a
		// crash of the watch pipeline.
		t.warn(fmt.Sprintf("ledger append failed: %v", err))
	}
}

// hash reads and digests the file, honoring the oversize sentinel. A
// file that is locked or already gone yields an empty hash; the record
// is still emitted.
func (t *Tracker) hash(absPath string) string {
	hash, err := baseline.HashFile(absPath, t.cfg.OversizeLimit)
	if err != nil {
		t.warn(fmt.Sprintf("could not hash %s: %v", absPath, err))
		return ""
	}
	return hash
}

func (t *Tracker) relPath(absPath string) (string, bool) {
	rel, err := filepath.Rel(t.cfg.WorkDir, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
