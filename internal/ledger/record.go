// Package ledger implements the hash-chained, append-only change log.
// Each line of the log is one canonical-JSON entry whose line_hash is
// SHA256(prev_hash + "\n" + canonical(entry minus line_hash)), so any
// edit or truncation of the log is detectable by replay.
package ledger

import "time"

// Op is the closed set of filesystem change operations, plus OpRaw for
// non-filesystem audit events (session markers, notes) that share the
// same chain.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
	OpRename Op = "rename"
	OpRaw    Op = "raw"
)

// Genesis is the chain head of an empty ledger.
const Genesis = "GENESIS"

// Record is the payload of one ledger line before chaining.
//
// Field usage by op:
//
//	create/modify: Path, NewHash (empty when the file could not be read)
//	delete:        Path, OldHash (empty when the baseline had no entry)
//	rename:        OldPath, Path (the new path), NewHash
//	raw:           EventType, Payload
type Record struct {
	Op        Op             `json:"op"`
	Path      string         `json:"path,omitempty"`
	OldPath   string         `json:"old_path,omitempty"`
	NewHash   string         `json:"new_hash,omitempty"`
	OldHash   string         `json:"old_hash,omitempty"`
	EventType string         `json:"event_type,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"ts"`
}

// Entry is a chained record as stored on disk. LineHash is omitted from
// its own hash input.
type Entry struct {
	Record
	PrevHash string `json:"prev_hash"`
	LineHash string `json:"line_hash,omitempty"`
}

// IsFileOp reports whether the entry records a filesystem change, as
// opposed to a raw audit event.
func (e *Entry) IsFileOp() bool {
	switch e.Op {
	case OpCreate, OpModify, OpDelete, OpRename:
		return true
	case OpRaw:
		return false
	}
	return false
}
