package config

import (
	"errors"
	"os"
	"testing"

	"pgregory.net/rapid"
)

func TestConfigMergePrecedence(t *testing.T) {
	// Generator for a non-empty string field value.
	nonEmptyString := rapid.StringMatching(`[a-zA-Z0-9/_.-]{1,20}`)

	// Generator for a Config with each field either unset or set.
	configGen := rapid.Custom(func(t *rapid.T) *Config {
		cfg := &Config{}
		if rapid.Bool().Draw(t, "hasDefaultFormat") {
			cfg.DefaultFormat = nonEmptyString.Draw(t, "defaultFormat")
		}
		if rapid.Bool().Draw(t, "hasSessionDir") {
			cfg.SessionDir = nonEmptyString.Draw(t, "sessionDir")
		}
		if rapid.Bool().Draw(t, "hasIgnoreFile") {
			cfg.IgnoreFile = nonEmptyString.Draw(t, "ignoreFile")
		}
		if rapid.Bool().Draw(t, "hasOversize") {
			cfg.OversizeLimitBytes = rapid.Int64Range(1, 1<<30).Draw(t, "oversize")
		}
		return cfg
	})

	rapid.Check(t, func(t *rapid.T) {
		global := configGen.Draw(t, "global")
		project := configGen.Draw(t, "project")

		merged := Merge(global, project)
		defaults := Defaults()

		checkStringField(t, "DefaultFormat",
			global.DefaultFormat, project.DefaultFormat, defaults.DefaultFormat,
			merged.DefaultFormat)

		checkStringField(t, "SessionDir",
			global.SessionDir, project.SessionDir, defaults.SessionDir,
			merged.SessionDir)

		checkStringField(t, "IgnoreFile",
			global.IgnoreFile, project.IgnoreFile, defaults.IgnoreFile,
			merged.IgnoreFile)

		// Numeric field follows the same precedence with zero as "unset".
		switch {
		case project.OversizeLimitBytes > 0:
			if merged.OversizeLimitBytes != project.OversizeLimitBytes {
				t.Fatalf("OversizeLimitBytes: want project value %d, got %d",
					project.OversizeLimitBytes, merged.OversizeLimitBytes)
			}
		case global.OversizeLimitBytes > 0:
			if merged.OversizeLimitBytes != global.OversizeLimitBytes {
				t.Fatalf("OversizeLimitBytes: want global value %d, got %d",
					global.OversizeLimitBytes, merged.OversizeLimitBytes)
			}
		default:
			if merged.OversizeLimitBytes != defaults.OversizeLimitBytes {
				t.Fatalf("OversizeLimitBytes: want default %d, got %d",
					defaults.OversizeLimitBytes, merged.OversizeLimitBytes)
			}
		}
	})
}

// checkStringField asserts the merge precedence rule for a single string field:
//   - project non-empty  → merged == project
//   - project empty, global non-empty → merged == global
//   - both empty → merged == defaultVal
func checkStringField(t *rapid.T, name, globalVal, projectVal, defaultVal, mergedVal string) {
	t.Helper()
	switch {
	case projectVal != "":
		if mergedVal != projectVal {
			t.Fatalf("%s: both set — expected project value %q, got %q", name, projectVal, mergedVal)
		}
	case globalVal != "":
		if mergedVal != globalVal {
			t.Fatalf("%s: only global set — expected global value %q, got %q", name, globalVal, mergedVal)
		}
	default:
		if mergedVal != defaultVal {
			t.Fatalf("%s: neither set — expected default %q, got %q", name, defaultVal, mergedVal)
		}
	}
}

func TestDefaultsValues(t *testing.T) {
	d := Defaults()
	if d.DefaultFormat != "text" {
		t.Errorf("DefaultFormat: want %q, got %q", "text", d.DefaultFormat)
	}
	if d.SessionDir != ".auditrail" {
		t.Errorf("SessionDir: want %q, got %q", ".auditrail", d.SessionDir)
	}
	if d.OversizeLimitBytes != 5<<20 {
		t.Errorf("OversizeLimitBytes: want %d, got %d", 5<<20, d.OversizeLimitBytes)
	}
	if d.DedupWindowMs != 250 || d.CorrelationWindowMs != 1000 {
		t.Errorf("windows: want 250/1000, got %d/%d", d.DedupWindowMs, d.CorrelationWindowMs)
	}
	if d.IgnorePatterns == nil || len(d.IgnorePatterns) != 0 {
		t.Errorf("IgnorePatterns: want empty slice, got %v", d.IgnorePatterns)
	}
}

func TestLoadGlobalMissingFileReturnsDefaults(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config, got nil")
	}
	defaults := Defaults()
	if cfg.DefaultFormat != defaults.DefaultFormat {
		t.Errorf("DefaultFormat: want %q, got %q", defaults.DefaultFormat, cfg.DefaultFormat)
	}
	if cfg.SessionDir != defaults.SessionDir {
		t.Errorf("SessionDir: want %q, got %q", defaults.SessionDir, cfg.SessionDir)
	}
}

func TestLoadProjectMissingFileReturnsNil(t *testing.T) {
	tmp := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })

	cfg, err := LoadProject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
}

func TestLoadGlobalParseError(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	// Write an invalid JSON file where LoadGlobal expects it.
	cfgDir := tmp + "/.config/auditrail"
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgDir+"/config.json", []byte("{invalid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadGlobal()
	if err == nil {
		t.Fatal("expected an error for invalid JSON, got nil")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *ParseError, got %T: %v", err, err)
	}
}
