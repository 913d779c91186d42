// Package model holds the value types shared across the pipeline: action
// identifiers, command specs, classification results, and speaker verdicts.
// Everything here is immutable after construction.
package model

import (
	"fmt"
	"regexp"
)

// ActionID is a whitelist-defined identifier naming one permitted system
// action. Uppercase letters, digits, and underscores only; must start with
// a letter.
type ActionID string

// validActionID matches the allowed identifier shape.
var validActionID = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Valid reports whether the identifier conforms to the whitelist shape.
func (id ActionID) Valid() bool {
	return validActionID.MatchString(string(id))
}

// DangerLevel classifies how destructive a registered command is.
type DangerLevel string

const (
	DangerUnknown DangerLevel = "unknown"
	DangerLow     DangerLevel = "low"
	DangerHigh    DangerLevel = "high"
)

// ParseDangerLevel maps a source string to a DangerLevel.
// Unknown strings are rejected rather than defaulted.
func ParseDangerLevel(s string) (DangerLevel, error) {
	switch DangerLevel(s) {
	case DangerLow, DangerHigh, DangerUnknown:
		return DangerLevel(s), nil
	default:
		return "", fmt.Errorf("invalid danger level %q: must be one of: low, high, unknown", s)
	}
}

// CommandSpec is one whitelisted command: an action identifier bound to a
// literal argv token list. The argv is never a shell string — tokens are
// passed to the OS without shell interpretation.
type CommandSpec struct {
	ActionID ActionID    `json:"action_id"`
	Argv     []string    `json:"argv"`
	Danger   DangerLevel `json:"danger"`
}

// ClassificationResult is the calibrated output of the intent classifier:
// the highest-posterior label and its probability. Produced fresh per
// request and never mutated.
type ClassificationResult struct {
	ActionID   ActionID `json:"action_id"`
	Confidence float64  `json:"confidence"`
	SourceText string   `json:"source_text"`
}

// NewClassificationResult constructs a result and enforces the
// confidence-in-[0,1] invariant at construction time.
func NewClassificationResult(id ActionID, confidence float64, sourceText string) (ClassificationResult, error) {
	if confidence < 0 || confidence > 1 {
		return ClassificationResult{}, fmt.Errorf("confidence %v outside [0,1]", confidence)
	}
	return ClassificationResult{
		ActionID:   id,
		Confidence: confidence,
		SourceText: sourceText,
	}, nil
}

// SpeakerVerdict is the outcome of verifying one audio sample against the
// enrolled voice profile. Advisory security: it reduces, not eliminates,
// the chance of acting on an unauthorized voice.
type SpeakerVerdict struct {
	Authorized bool    `json:"authorized"`
	Score      float64 `json:"score"`
}
