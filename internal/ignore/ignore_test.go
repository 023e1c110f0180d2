package ignore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fakeyudi/auditrail/internal/ignore"
)

func TestMatchBasicGlobs(t *testing.T) {
	rules := ignore.NewRules([]string{"*.log", "build/**", "?.txt"})

	cases := []struct {
		rel  string
		want bool
	}{
		{"debug.log", true},
		{"nested/deep/debug.log", true}, // matched by base name
		{"build/out/a.o", true},
		{"builds/a.o", false},
		{"a.txt", true},
		{"ab.txt", false},
		{"main.go", false},
	}
	for _, c := range cases {
		if got := rules.Match(c.rel); got != c.want {
			t.Errorf("Match(%q) = %v, want %v", c.rel, got, c.want)
		}
	}
}

func TestMatchDoubleStarDirectories(t *testing.T) {
	rules := ignore.NewRules([]string{"**/node_modules/**"})
	if !rules.Match("pkg/node_modules/lib/index.js") {
		t.Error("expected deep node_modules path to match")
	}
	if rules.Match("pkg/src/index.js") {
		t.Error("unexpected match for non-ignored path")
	}
}

func TestLoadMergesFilesAndSkipsComments(t *testing.T) {
	workdir := t.TempDir()
	ignoreFile := filepath.Join(workdir, ".auditrailignore")
	content := "# build output\n*.o\n\n  dist/**  \n"
	if err := os.WriteFile(ignoreFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	extra := filepath.Join(t.TempDir(), "rules.txt")
	if err := os.WriteFile(extra, []byte("*.swp\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rules, err := ignore.Load(workdir, []string{"*.bak"}, extra)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, rel := range []string{"a.bak", "b.o", "dist/x/y", "c.swp"} {
		if !rules.Match(rel) {
			t.Errorf("expected %q to be ignored", rel)
		}
	}
	if rules.Match("# build output") {
		t.Error("comment line was treated as a pattern")
	}
}

func TestLoadMissingFilesAreFine(t *testing.T) {
	rules, err := ignore.Load(t.TempDir(), nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rules.Match("anything.txt") {
		t.Error("empty rule set matched a path")
	}
}

func TestHasSkipSentinel(t *testing.T) {
	dir := t.TempDir()
	if ignore.HasSkipSentinel(dir) {
		t.Error("sentinel reported in empty dir")
	}
	if err := os.WriteFile(filepath.Join(dir, ignore.SkipSentinel), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !ignore.HasSkipSentinel(dir) {
		t.Error("sentinel not detected")
	}
}
