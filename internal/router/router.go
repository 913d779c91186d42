// Package router maps a calibrated classification confidence, and optionally
// a speaker verdict, to an authorization tier. Route is a pure function: no
// I/O, no side effects, no mutable state.
package router

import (
	"fmt"

	"github.com/auroralab/aurora/internal/model"
)

// Default confidence thresholds.
const (
	DefaultAutoThreshold    = 0.75
	DefaultConfirmThreshold = 0.40
)

// Outcome is the authorization tier assigned to a request.
type Outcome string

const (
	AutoExecute Outcome = "auto_execute"
	Confirm     Outcome = "confirm"
	Reject      Outcome = "reject"
)

// Decision is the terminal result of routing one classification. It is
// consumed exactly once by the caller.
type Decision struct {
	Outcome    Outcome        `json:"outcome"`
	ActionID   model.ActionID `json:"action_id,omitempty"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason,omitempty"`
}

// ConfigError reports invalid router thresholds. Construction fails fast;
// a misconfigured router is never allowed to route.
type ConfigError struct {
	Auto    float64
	Confirm float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("router: invalid thresholds: need 0 <= confirm (%v) <= auto (%v) <= 1", e.Confirm, e.Auto)
}

// Router holds validated thresholds. Safe for concurrent use.
type Router struct {
	autoThreshold    float64
	confirmThreshold float64
}

// New creates a router, validating the threshold ordering invariant
// 0 <= confirmThreshold <= autoThreshold <= 1 at construction time.
func New(autoThreshold, confirmThreshold float64) (*Router, error) {
	if !(0 <= confirmThreshold && confirmThreshold <= autoThreshold && autoThreshold <= 1) {
		return nil, &ConfigError{Auto: autoThreshold, Confirm: confirmThreshold}
	}
	return &Router{
		autoThreshold:    autoThreshold,
		confirmThreshold: confirmThreshold,
	}, nil
}

// NewDefault creates a router with the default 0.75/0.40 thresholds.
func NewDefault() *Router {
	r, err := New(DefaultAutoThreshold, DefaultConfirmThreshold)
	if err != nil {
		// Defaults satisfy the invariant; this is unreachable.
		panic(err)
	}
	return r
}

// Thresholds returns the configured (auto, confirm) thresholds.
func (r *Router) Thresholds() (auto, confirm float64) {
	return r.autoThreshold, r.confirmThreshold
}

// Route decides what to do with a classified request. verdict may be nil
// when speaker gating is disabled. Decision rule, ties resolved toward the
// higher-trust branch:
//
//	unauthorized speaker           -> Reject (dominates confidence)
//	confidence >= auto             -> AutoExecute
//	confirm <= confidence < auto   -> Confirm
//	confidence < confirm           -> Reject
func (r *Router) Route(result model.ClassificationResult, verdict *model.SpeakerVerdict) Decision {
	if verdict != nil && !verdict.Authorized {
		return Decision{
			Outcome:    Reject,
			ActionID:   result.ActionID,
			Confidence: result.Confidence,
			Reason:     fmt.Sprintf("speaker not authorized (score=%.3f)", verdict.Score),
		}
	}

	switch {
	case result.Confidence >= r.autoThreshold:
		return Decision{
			Outcome:    AutoExecute,
			ActionID:   result.ActionID,
			Confidence: result.Confidence,
		}
	case result.Confidence >= r.confirmThreshold:
		return Decision{
			Outcome:    Confirm,
			ActionID:   result.ActionID,
			Confidence: result.Confidence,
			Reason:     fmt.Sprintf("confidence %.2f below auto-execute threshold %.2f", result.Confidence, r.autoThreshold),
		}
	default:
		return Decision{
			Outcome:    Reject,
			ActionID:   result.ActionID,
			Confidence: result.Confidence,
			Reason:     "confidence below minimum",
		}
	}
}
