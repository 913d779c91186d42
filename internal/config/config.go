// Package config loads the pipeline configuration from YAML. Defaults are
// built in; a config file overwrites only the fields it specifies, and a
// missing file means pure defaults.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Wakeword controls transcript preprocessing.
type Wakeword struct {
	Word          string `yaml:"word"`
	CaseSensitive bool   `yaml:"case_sensitive"`
	StartOnly     bool   `yaml:"start_only"`
}

// Thresholds are the confidence boundaries for routing decisions.
type Thresholds struct {
	AutoExecute float64 `yaml:"auto_execute"`
	Confirm     float64 `yaml:"confirm"`
}

// Speaker controls the optional voice gate.
type Speaker struct {
	Enabled          bool    `yaml:"enabled"`
	Threshold        float64 `yaml:"threshold"`
	MinEnrollSamples int     `yaml:"min_enroll_samples"`
	ProfilePath      string  `yaml:"profile_path"`
}

// Executor controls command spawning.
type Executor struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Daemon controls the transcript-file watch mode.
type Daemon struct {
	Inbox      string `yaml:"inbox"`
	Outbox     string `yaml:"outbox"`
	DebounceMS int    `yaml:"debounce_ms"`
	Workers    int    `yaml:"workers"`
}

// Config holds all configurable pipeline parameters.
type Config struct {
	Wakeword     Wakeword   `yaml:"wakeword"`
	Thresholds   Thresholds `yaml:"thresholds"`
	Speaker      Speaker    `yaml:"speaker"`
	Executor     Executor   `yaml:"executor"`
	Daemon       Daemon     `yaml:"daemon"`
	RegistryPath string     `yaml:"registry_path"`
	ModelDir     string     `yaml:"model_dir"`
	AuditPath    string     `yaml:"audit_path"`
}

// Default returns the built-in configuration. Paths live under ~/.aurora.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".aurora")
	return &Config{
		Wakeword: Wakeword{
			Word:      "aurora",
			StartOnly: true,
		},
		Thresholds: Thresholds{
			AutoExecute: 0.75,
			Confirm:     0.40,
		},
		Speaker: Speaker{
			Enabled:          false,
			Threshold:        0.5,
			MinEnrollSamples: 3,
			ProfilePath:      filepath.Join(base, "speaker.db"),
		},
		Executor: Executor{
			TimeoutSeconds: 30,
		},
		Daemon: Daemon{
			Inbox:      filepath.Join(base, "inbox"),
			Outbox:     filepath.Join(base, "outbox"),
			DebounceMS: 200,
			Workers:    2,
		},
		RegistryPath: filepath.Join(base, "commands.conf"),
		ModelDir:     filepath.Join(base, "model"),
		AuditPath:    filepath.Join(base, "audit.jsonl"),
	}
}

// DefaultPath is the config location used when none is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "aurora.yaml"
	}
	return filepath.Join(home, ".aurora", "config.yaml")
}

// ExecTimeout returns the executor timeout as a duration.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Executor.TimeoutSeconds) * time.Second
}

// Debounce returns the daemon debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Daemon.DebounceMS) * time.Millisecond
}

// Validate checks cross-field invariants that YAML parsing cannot.
func (c *Config) Validate() error {
	t := c.Thresholds
	if t.Confirm < 0 || t.AutoExecute > 1 || t.Confirm > t.AutoExecute {
		return fmt.Errorf("config: thresholds must satisfy 0 <= confirm <= auto_execute <= 1, got confirm=%v auto_execute=%v", t.Confirm, t.AutoExecute)
	}
	if c.Speaker.Threshold < 0 || c.Speaker.Threshold > 1 {
		return fmt.Errorf("config: speaker.threshold %v outside [0,1]", c.Speaker.Threshold)
	}
	if c.Speaker.MinEnrollSamples < 1 {
		return fmt.Errorf("config: speaker.min_enroll_samples must be at least 1")
	}
	if c.Executor.TimeoutSeconds < 1 {
		return fmt.Errorf("config: executor.timeout_seconds must be at least 1")
	}
	if c.Wakeword.Word == "" {
		return fmt.Errorf("config: wakeword.word must not be empty")
	}
	if c.Daemon.Workers < 1 {
		return fmt.Errorf("config: daemon.workers must be at least 1")
	}
	return nil
}

// Load reads configuration from a YAML file. Empty path falls back to
// DefaultPath. Missing file returns defaults. Invalid YAML or invariant
// violations return an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns the SHA-256 of the raw YAML
// bytes, for recording in the audit trail. Defaults (no file) hash empty
// input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			cfg := Default()
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("config: read %s: %w", path, err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start from defaults; YAML overwrites only the fields it names.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// expandPaths rewrites a leading "~/" in every path field to the home
// directory, so the template written by `aurora init` loads as-is.
func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Speaker.ProfilePath,
		&c.Daemon.Inbox,
		&c.Daemon.Outbox,
		&c.RegistryPath,
		&c.ModelDir,
		&c.AuditPath,
	} {
		*p = expandHome(*p)
	}
}

func expandHome(path string) string {
	if len(path) < 2 || path[0] != '~' || path[1] != '/' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// DefaultYAML returns a commented YAML template written by `aurora init`.
func DefaultYAML() string {
	return `# aurora pipeline configuration
#
# Transcripts flow: wakeword strip -> intent classification ->
# optional speaker gate -> confidence routing -> execution.

wakeword:
  word: aurora
  case_sensitive: false
  # Only strip the wakeword when it is the first token.
  start_only: true

# Confidence boundaries for routing decisions.
# confidence >= auto_execute -> run immediately
# confirm <= confidence < auto_execute -> ask the operator first
# confidence < confirm -> reject
thresholds:
  auto_execute: 0.75
  confirm: 0.40

# Optional voice gate. When enabled with no enrolled profile, every
# request is rejected (the gate fails closed).
speaker:
  enabled: false
  threshold: 0.5
  min_enroll_samples: 3
  profile_path: ~/.aurora/speaker.db

executor:
  timeout_seconds: 30

# Watch mode: transcript files dropped into inbox produce result files
# in outbox.
daemon:
  inbox: ~/.aurora/inbox
  outbox: ~/.aurora/outbox
  debounce_ms: 200
  workers: 2

registry_path: ~/.aurora/commands.conf
model_dir: ~/.aurora/model
audit_path: ~/.aurora/audit.jsonl
`
}
