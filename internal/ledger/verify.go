package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/fakeyudi/auditrail/internal/canon"
)

// Verification failure reasons.
const (
	ReasonMalformedLine   = "malformed json line"
	ReasonMissingLineHash = "missing line_hash field"
	ReasonPrevMismatch    = "prev_hash does not match chain head"
	ReasonHashMismatch    = "recomputed line_hash does not match stored value"
	ReasonUnreadable      = "ledger file unreadable"
)

// VerifyError locates the first line at which verification failed.
type VerifyError struct {
	LineNumber int    `json:"line_number"`
	Reason     string `json:"reason"`
	Expected   string `json:"expected,omitempty"`
	Computed   string `json:"computed,omitempty"`
}

// VerifyResult is the structured outcome of a full-chain verification.
// Verification never panics or returns a Go error; every failure mode is
// reported here.
type VerifyResult struct {
	OK             bool         `json:"ok"`
	RecordsChecked int          `json:"records_checked"`
	FirstError     *VerifyError `json:"first_error,omitempty"`
}

// Verify replays the whole chain from Genesis, recomputing each line's
// hash from the stored prev_hash and the line minus its line_hash field,
// and stops at the first mismatch. An empty or missing log is vacuously
// valid with zero records checked.
func Verify(path string) VerifyResult {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return VerifyResult{OK: true}
		}
		return VerifyResult{FirstError: &VerifyError{Reason: ReasonUnreadable}}
	}

	head := Genesis
	checked := 0
	lineNo := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNo++

		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return failAt(checked, lineNo, ReasonMalformedLine, "", "")
		}

		stored, ok := m["line_hash"].(string)
		if !ok || stored == "" {
			return failAt(checked, lineNo, ReasonMissingLineHash, "", "")
		}
		prev, _ := m["prev_hash"].(string)
		if prev != head {
			return failAt(checked, lineNo, ReasonPrevMismatch, head, prev)
		}

		delete(m, "line_hash")
		computed, err := canon.ChainHash(head, m)
		if err != nil {
			return failAt(checked, lineNo, ReasonMalformedLine, "", "")
		}
		if computed != stored {
			return failAt(checked, lineNo, ReasonHashMismatch, stored, computed)
		}

		head = stored
		checked++
	}
	return VerifyResult{OK: true, RecordsChecked: checked}
}

func failAt(checked, line int, reason, expected, computed string) VerifyResult {
	return VerifyResult{
		RecordsChecked: checked,
		FirstError: &VerifyError{
			LineNumber: line,
			Reason:     reason,
			Expected:   expected,
			Computed:   computed,
		},
	}
}
