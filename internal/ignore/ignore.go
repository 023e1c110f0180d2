// Package ignore loads and matches glob-style ignore rules shared by
// the baseline snapshotter and the change tracker.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SkipSentinel marks a directory as off-limits for traversal. Any
// directory containing a file with this name is skipped wholesale, which
// bounds walks over adversarial or self-referential trees.
const SkipSentinel = ".noscan"

// Rules is a compiled set of ignore patterns. Patterns support **, * and
// ? and are matched against both the slash-normalized relative path and
// the base name.
type Rules struct {
	patterns []string
}

// NewRules builds a rule set from literal patterns.
func NewRules(patterns []string) *Rules {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return &Rules{patterns: out}
}

// Load merges configured patterns with those read from the optional
// rules file at rulesPath and from <workdir>/.auditrailignore. Missing
// files are fine; an unreadable rules file is an error.
func Load(workdir string, configured []string, rulesPath string) (*Rules, error) {
	patterns := make([]string, len(configured))
	copy(patterns, configured)

	candidates := []string{filepath.Join(workdir, ".auditrailignore")}
	if rulesPath != "" {
		candidates = append(candidates, rulesPath)
	}
	for _, path := range candidates {
		extra, err := readPatternFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, extra...)
	}
	return NewRules(patterns), nil
}

// Match reports whether the slash-relative path rel matches any pattern.
func (r *Rules) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}
	for _, p := range r.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Add appends more patterns to the rule set.
func (r *Rules) Add(patterns ...string) {
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p != "" {
			r.patterns = append(r.patterns, p)
		}
	}
}

// HasSkipSentinel reports whether dir contains the traversal-blocking
// sentinel file.
func HasSkipSentinel(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, SkipSentinel))
	return err == nil
}

// readPatternFile reads one glob pattern per line, skipping blank lines
// and #-prefixed comments.
func readPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}
