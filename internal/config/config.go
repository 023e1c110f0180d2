package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Config holds all configurable auditrail settings.
type Config struct {
	IgnorePatterns      []string `json:"ignore_patterns"`
	IgnoreFile          string   `json:"ignore_file"`           // extra rules file, one glob per line
	SessionDir          string   `json:"session_dir"`           // artifact dir name inside the work dir
	OversizeLimitBytes  int64    `json:"oversize_limit_bytes"`  // files above this get the sentinel hash
	DedupWindowMs       int      `json:"dedup_window_ms"`       // save-storm collapse window
	CorrelationWindowMs int      `json:"correlation_window_ms"` // delete/create rename window
	DefaultFormat       string   `json:"default_format"`        // "text" | "json"
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		IgnorePatterns:      []string{},
		SessionDir:          ".auditrail",
		OversizeLimitBytes:  5 << 20,
		DedupWindowMs:       250,
		CorrelationWindowMs: 1000,
		DefaultFormat:       "text",
	}
}

// DedupWindow returns the dedup window as a duration.
func (c Config) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMs) * time.Millisecond
}

// CorrelationWindow returns the rename correlation window as a duration.
func (c Config) CorrelationWindow() time.Duration {
	return time.Duration(c.CorrelationWindowMs) * time.Millisecond
}

// LoadGlobal reads ~/.config/auditrail/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "auditrail", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .auditrailconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".auditrailconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, c := range []*Config{global, project} {
		if c == nil {
			continue
		}
		if len(c.IgnorePatterns) > 0 {
			result.IgnorePatterns = c.IgnorePatterns
		}
		if c.IgnoreFile != "" {
			result.IgnoreFile = c.IgnoreFile
		}
		if c.SessionDir != "" {
			result.SessionDir = c.SessionDir
		}
		if c.OversizeLimitBytes > 0 {
			result.OversizeLimitBytes = c.OversizeLimitBytes
		}
		if c.DedupWindowMs > 0 {
			result.DedupWindowMs = c.DedupWindowMs
		}
		if c.CorrelationWindowMs > 0 {
			result.CorrelationWindowMs = c.CorrelationWindowMs
		}
		if c.DefaultFormat != "" {
			result.DefaultFormat = c.DefaultFormat
		}
	}
	return result
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
