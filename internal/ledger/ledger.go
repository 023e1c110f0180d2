package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fakeyudi/auditrail/internal/canon"
	"github.com/fakeyudi/auditrail/internal/store"
)

// Ledger appends chained records to a newline-delimited log file.
// Appends are serialized through a lock next to the file, so writers in
// other processes cannot interleave with (or clobber) each other; reads
// take no lock.
type Ledger struct {
	Path string
}

// New returns a Ledger over the log file at path. The file need not
// exist yet; the first append starts the chain at Genesis.
func New(path string) *Ledger {
	return &Ledger{Path: path}
}

// Append chains rec onto the current head and persists it through the
// atomic store. The head read and the write happen under the path lock
// as one critical section; a concurrent appender sees the new head, not
// a torn one. It returns the new chain head.
func (l *Ledger) Append(rec Record) (string, error) {
	var lineHash string
	err := store.WithPathLock(l.Path, func() error {
		head, err := l.Head()
		if err != nil {
			return err
		}

		entry := Entry{Record: rec, PrevHash: head}
		lineHash, err = canon.ChainHash(head, &entry)
		if err != nil {
			return fmt.Errorf("hashing ledger entry: %w", err)
		}
		entry.LineHash = lineHash

		line, err := canon.Canonicalize(&entry)
		if err != nil {
			return fmt.Errorf("serializing ledger entry: %w", err)
		}
		return store.Append(l.Path, []byte(line+"\n"))
	})
	if err != nil {
		return "", err
	}
	return lineHash, nil
}

// Head returns the line_hash of the last parseable line, or Genesis for
// an empty or missing log. It tolerates an invalid tail so that
// crash-recovery inspection can still find a usable head.
func (l *Ledger) Head() (string, error) {
	entries, _, err := l.Read()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return Genesis, nil
	}
	return entries[len(entries)-1].LineHash, nil
}

// Read parses every line of the log, skipping lines that fail to parse.
// It returns the parsed entries and the count of skipped lines. Only an
// unopenable file is an error; a missing file yields an empty ledger.
func (l *Ledger) Read() ([]Entry, int, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read ledger: %w", err)
	}

	var entries []Entry
	skipped := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil || e.LineHash == "" {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}
