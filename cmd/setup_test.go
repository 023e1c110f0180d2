package cmd

import (
	"strings"
	"testing"

	"github.com/fakeyudi/auditrail/internal/profile"
)

// TestSetupSavesProfile verifies the flag-driven profile write and that
// re-running setup merges instead of clobbering.
func TestSetupSavesProfile(t *testing.T) {
	isolate(t)

	rootCmd.ResetFlags()
	out, err := executeCommand(rootCmd, "setup", "--name", "erin", "--format", "json")
	if err != nil {
		t.Fatalf("setup command error: %v", err)
	}
	if !strings.Contains(out, "Profile saved") {
		t.Errorf("expected confirmation, got: %q", out)
	}

	p, err := profile.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "erin" || p.DefaultFormat != "json" {
		t.Errorf("profile = %+v, want name erin and format json", p)
	}

	// Re-run with only one flag; the other value must survive.
	rootCmd.ResetFlags()
	setupName = ""
	setupFormat = "text"
	if _, err := executeCommand(rootCmd, "setup", "--format", "text"); err != nil {
		t.Fatalf("second setup: %v", err)
	}
	p, err = profile.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "erin" || p.DefaultFormat != "text" {
		t.Errorf("profile = %+v, want name erin preserved and format text", p)
	}
}

// TestSetupRejectsUnknownFormat keeps the format enum closed.
func TestSetupRejectsUnknownFormat(t *testing.T) {
	isolate(t)

	rootCmd.ResetFlags()
	setupName = ""
	setupFormat = ""
	out, err := executeCommand(rootCmd, "setup", "--format", "yaml")
	if err == nil {
		t.Fatal("expected an error for an unknown format, got nil")
	}
	combined := out + err.Error()
	if !strings.Contains(combined, "must be text or json") {
		t.Errorf("expected format error, got: %q", combined)
	}
}
