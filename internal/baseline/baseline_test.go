package baseline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fakeyudi/auditrail/internal/baseline"
	"github.com/fakeyudi/auditrail/internal/canon"
	"github.com/fakeyudi/auditrail/internal/ignore"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestSnapshotRecordsContentHashes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "sub/b.txt", "world")

	b, err := baseline.Snapshot(root, ignore.NewRules(nil), baseline.Options{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(b.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(b.Files))
	}

	e, ok := b.Lookup("a.txt")
	if !ok {
		t.Fatal("a.txt missing from baseline")
	}
	if e.ContentHash != canon.Digest([]byte("hello")) {
		t.Errorf("a.txt hash = %q, want digest of content", e.ContentHash)
	}
	if e.Size != 5 {
		t.Errorf("a.txt size = %d, want 5", e.Size)
	}

	if _, ok := b.Lookup("sub/b.txt"); !ok {
		t.Error("sub/b.txt missing from baseline")
	}
}

func TestSnapshotHonorsIgnoreRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "x")
	writeFile(t, root, "skip.log", "x")
	writeFile(t, root, "vendor/dep/lib.go", "x")

	rules := ignore.NewRules([]string{"*.log", "vendor/**"})
	b, err := baseline.Snapshot(root, rules, baseline.Options{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if _, ok := b.Lookup("keep.go"); !ok {
		t.Error("keep.go missing")
	}
	if _, ok := b.Lookup("skip.log"); ok {
		t.Error("skip.log should be ignored")
	}
	if _, ok := b.Lookup("vendor/dep/lib.go"); ok {
		t.Error("vendored file should be ignored")
	}
}

func TestSnapshotSkipsSentinelDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ok.txt", "x")
	writeFile(t, root, "blocked/inner.txt", "x")
	writeFile(t, root, "blocked/"+ignore.SkipSentinel, "")

	b, err := baseline.Snapshot(root, ignore.NewRules(nil), baseline.Options{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, ok := b.Lookup("ok.txt"); !ok {
		t.Error("ok.txt missing")
	}
	if _, ok := b.Lookup("blocked/inner.txt"); ok {
		t.Error("file inside sentinel dir should be skipped")
	}
}

func TestSnapshotOversizeSentinel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.bin", "0123456789")
	writeFile(t, root, "small.bin", "0123")

	b, err := baseline.Snapshot(root, ignore.NewRules(nil), baseline.Options{OversizeLimit: 5})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	big, _ := b.Lookup("big.bin")
	if big.ContentHash != baseline.OversizeHash {
		t.Errorf("big.bin hash = %q, want oversize sentinel", big.ContentHash)
	}
	small, _ := b.Lookup("small.bin")
	if small.ContentHash == baseline.OversizeHash {
		t.Error("small.bin got the oversize sentinel")
	}
}

func TestSnapshotOmitsUnreadableFiles(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root; permission checks are ineffective")
	}
	root := t.TempDir()
	writeFile(t, root, "ok.txt", "x")
	writeFile(t, root, "secret.txt", "x")
	if err := os.Chmod(filepath.Join(root, "secret.txt"), 0o000); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(filepath.Join(root, "secret.txt"), 0o644) })

	b, err := baseline.Snapshot(root, ignore.NewRules(nil), baseline.Options{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, ok := b.Lookup("ok.txt"); !ok {
		t.Error("ok.txt missing")
	}
	if _, ok := b.Lookup("secret.txt"); ok {
		t.Error("unreadable file should be omitted, not fail the snapshot")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")

	b, err := baseline.Snapshot(root, ignore.NewRules(nil), baseline.Options{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := b.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := baseline.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, ok := loaded.Lookup("a.txt")
	if !ok {
		t.Fatal("a.txt missing after round trip")
	}
	want, _ := b.Lookup("a.txt")
	if got.ContentHash != want.ContentHash || got.Size != want.Size {
		t.Errorf("entry mismatch: got %+v, want %+v", got, want)
	}
	if !got.LastModified.Equal(want.LastModified) {
		t.Errorf("LastModified mismatch: got %v, want %v", got.LastModified, want.LastModified)
	}
}
