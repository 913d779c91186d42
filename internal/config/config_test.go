package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.Wakeword.Word != "aurora" {
		t.Errorf("Wakeword.Word = %q, want aurora", cfg.Wakeword.Word)
	}
	if !cfg.Wakeword.StartOnly {
		t.Error("Wakeword.StartOnly = false, want true")
	}
	if cfg.Thresholds.AutoExecute != 0.75 {
		t.Errorf("Thresholds.AutoExecute = %v, want 0.75", cfg.Thresholds.AutoExecute)
	}
	if cfg.Thresholds.Confirm != 0.40 {
		t.Errorf("Thresholds.Confirm = %v, want 0.40", cfg.Thresholds.Confirm)
	}
	if cfg.Speaker.Enabled {
		t.Error("Speaker.Enabled = true, want disabled by default")
	}
	if cfg.Executor.TimeoutSeconds != 30 {
		t.Errorf("Executor.TimeoutSeconds = %d, want 30", cfg.Executor.TimeoutSeconds)
	}
	if cfg.ExecTimeout() != 30*time.Second {
		t.Errorf("ExecTimeout() = %v, want 30s", cfg.ExecTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Thresholds.AutoExecute != 0.75 {
		t.Errorf("AutoExecute = %v, want default 0.75", cfg.Thresholds.AutoExecute)
	}
}

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	src := `
thresholds:
  auto_execute: 0.9
wakeword:
  word: jarvis
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Thresholds.AutoExecute != 0.9 {
		t.Errorf("AutoExecute = %v, want 0.9", cfg.Thresholds.AutoExecute)
	}
	if cfg.Thresholds.Confirm != 0.40 {
		t.Errorf("Confirm = %v, want untouched default 0.40", cfg.Thresholds.Confirm)
	}
	if cfg.Wakeword.Word != "jarvis" {
		t.Errorf("Wakeword.Word = %q, want jarvis", cfg.Wakeword.Word)
	}
	if cfg.Executor.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want untouched default 30", cfg.Executor.TimeoutSeconds)
	}
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"confirm above auto", "thresholds:\n  auto_execute: 0.3\n  confirm: 0.8\n"},
		{"auto above one", "thresholds:\n  auto_execute: 1.5\n"},
		{"negative confirm", "thresholds:\n  confirm: -0.1\n"},
		{"bad speaker threshold", "speaker:\n  threshold: 2.0\n"},
		{"zero timeout", "executor:\n  timeout_seconds: 0\n"},
		{"empty wakeword", "wakeword:\n  word: \"\"\n"},
		{"malformed yaml", "thresholds: [not, a, map\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.src), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%q) succeeded, want error", tt.src)
			}
		})
	}
}

func TestLoadWithHashIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("thresholds:\n  auto_execute: 0.8\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, h1, err := LoadWithHash(path)
	if err != nil {
		t.Fatalf("LoadWithHash() error = %v", err)
	}
	_, h2, err := LoadWithHash(path)
	if err != nil {
		t.Fatalf("LoadWithHash() error = %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash differs across identical loads: %s vs %s", h1, h2)
	}
	if !strings.HasPrefix(h1, "sha256:") {
		t.Errorf("hash = %s, want sha256: prefix", h1)
	}

	if err := os.WriteFile(path, []byte("thresholds:\n  auto_execute: 0.9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, h3, err := LoadWithHash(path)
	if err != nil {
		t.Fatalf("LoadWithHash() error = %v", err)
	}
	if h3 == h1 {
		t.Error("hash unchanged after config change")
	}
}

func TestDefaultYAMLRoundTrip(t *testing.T) {
	var parsed Config
	if err := yaml.Unmarshal([]byte(DefaultYAML()), &parsed); err != nil {
		t.Fatalf("DefaultYAML does not parse: %v", err)
	}

	defaults := Default()
	if parsed.Thresholds != defaults.Thresholds {
		t.Errorf("template thresholds %+v != defaults %+v", parsed.Thresholds, defaults.Thresholds)
	}
	if parsed.Wakeword != defaults.Wakeword {
		t.Errorf("template wakeword %+v != defaults %+v", parsed.Wakeword, defaults.Wakeword)
	}
	if parsed.Executor != defaults.Executor {
		t.Errorf("template executor %+v != defaults %+v", parsed.Executor, defaults.Executor)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/.aurora/audit.jsonl"); got != filepath.Join(home, ".aurora", "audit.jsonl") {
		t.Errorf("expandHome = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("expandHome(/abs/path) = %q, want unchanged", got)
	}
	if got := expandHome("relative"); got != "relative" {
		t.Errorf("expandHome(relative) = %q, want unchanged", got)
	}
}
