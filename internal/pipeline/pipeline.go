// Package pipeline wires the full request path: wakeword stripping, intent
// classification, the optional speaker gate, confidence routing, and
// execution, with every decision recorded in the audit log.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auroralab/aurora/internal/audit"
	"github.com/auroralab/aurora/internal/executor"
	"github.com/auroralab/aurora/internal/model"
	"github.com/auroralab/aurora/internal/registry"
	"github.com/auroralab/aurora/internal/router"
	"github.com/auroralab/aurora/internal/speaker"
	"github.com/auroralab/aurora/internal/wakeword"
)

// Classifier maps a cleaned transcript to an action with a calibrated
// confidence.
type Classifier interface {
	Classify(text string) (model.ClassificationResult, error)
}

// SpeakerGate scores an audio sample against the enrolled voice profile.
type SpeakerGate interface {
	Verify(s speaker.Sample) (model.SpeakerVerdict, error)
}

// Runner spawns a whitelisted command. Satisfied by *executor.Executor.
type Runner interface {
	Execute(ctx context.Context, id model.ActionID, reg *registry.Registry) (*executor.Result, error)
}

// Status is the terminal state of one processed request.
type Status string

const (
	// StatusExecuted means the command ran and exited.
	StatusExecuted Status = "executed"
	// StatusPending means the request needs operator confirmation before
	// anything runs.
	StatusPending Status = "pending_confirmation"
	// StatusRejected means nothing ran and nothing will.
	StatusRejected Status = "rejected"
	// StatusFailed means execution was authorized but the spawn failed or
	// timed out.
	StatusFailed Status = "execution_failed"
)

// Request is one transcribed utterance, optionally with the audio it was
// transcribed from for speaker gating.
type Request struct {
	Text  string
	Audio *speaker.Sample
}

// Outcome is the result of processing one request.
type Outcome struct {
	RequestID  string           `json:"request_id"`
	Transcript string           `json:"transcript"`
	Decision   router.Decision  `json:"decision"`
	Status     Status           `json:"status"`
	Result     *executor.Result `json:"result,omitempty"`
	ExecErr    string           `json:"exec_err,omitempty"`

	speakerScore *float64
}

// Deps are the pipeline's collaborators. Gate may be nil when speaker
// gating is disabled; Logger may be nil for silence.
type Deps struct {
	Wakeword     *wakeword.Processor
	Classifier   Classifier
	Gate         SpeakerGate
	Router       *router.Router
	Runner       Runner
	Registry     *registry.Registry
	Audit        *audit.Log
	Logger       *zap.Logger
	RegistryHash string
}

// Pipeline processes transcribed utterances end to end. Safe for concurrent
// use; per-request state lives on the stack.
type Pipeline struct {
	deps Deps
}

// New validates the required collaborators and builds a pipeline.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Wakeword == nil:
		return nil, fmt.Errorf("pipeline: wakeword processor is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("pipeline: classifier is required")
	case deps.Router == nil:
		return nil, fmt.Errorf("pipeline: router is required")
	case deps.Runner == nil:
		return nil, fmt.Errorf("pipeline: runner is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("pipeline: registry is required")
	case deps.Audit == nil:
		return nil, fmt.Errorf("pipeline: audit log is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{deps: deps}, nil
}

// Process runs one request through the full path. The returned error covers
// infrastructure failures (audit write, classifier load state); a rejected
// request is a successful Process call with StatusRejected.
func (p *Pipeline) Process(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{RequestID: uuid.NewString()}
	log := p.deps.Logger.With(zap.String("request_id", out.RequestID))

	detected, stripped := p.deps.Wakeword.Process(req.Text)
	out.Transcript = stripped
	log.Debug("wakeword processed",
		zap.Bool("detected", detected),
		zap.String("transcript", stripped))

	if stripped == "" {
		return p.reject(out, "empty transcript after wakeword removal", log)
	}

	result, err := p.deps.Classifier.Classify(stripped)
	if err != nil {
		return p.reject(out, fmt.Sprintf("classification failed: %v", err), log)
	}

	var verdict *model.SpeakerVerdict
	if p.deps.Gate != nil {
		if req.Audio == nil {
			out.Decision.ActionID = result.ActionID
			out.Decision.Confidence = result.Confidence
			return p.reject(out, "speaker gate enabled but request carries no audio", log)
		}
		v, err := p.deps.Gate.Verify(*req.Audio)
		if err != nil {
			// Includes the untrained-profile case. The gate fails closed.
			out.Decision.ActionID = result.ActionID
			out.Decision.Confidence = result.Confidence
			return p.reject(out, fmt.Sprintf("speaker verification failed: %v", err), log)
		}
		verdict = &v
		out.speakerScore = &v.Score
	}

	out.Decision = p.deps.Router.Route(result, verdict)
	log.Info("request routed",
		zap.String("action_id", string(out.Decision.ActionID)),
		zap.Float64("confidence", out.Decision.Confidence),
		zap.String("outcome", string(out.Decision.Outcome)),
		zap.String("reason", out.Decision.Reason))

	switch out.Decision.Outcome {
	case router.AutoExecute:
		return p.execute(ctx, out, log)

	case router.Confirm:
		out.Status = StatusPending
		if err := p.record(out, string(router.Confirm), out.Decision.Reason); err != nil {
			return out, err
		}
		return out, nil

	default:
		out.Status = StatusRejected
		if err := p.record(out, string(router.Reject), out.Decision.Reason); err != nil {
			return out, err
		}
		return out, nil
	}
}

// ExecuteConfirmed runs a request the operator has approved. Only a
// pending outcome is accepted; anything else never reaches the executor.
func (p *Pipeline) ExecuteConfirmed(ctx context.Context, out Outcome) (Outcome, error) {
	if out.Status != StatusPending {
		return out, fmt.Errorf("pipeline: cannot execute request in state %q", out.Status)
	}
	log := p.deps.Logger.With(zap.String("request_id", out.RequestID))
	return p.execute(ctx, out, log)
}

// DeclineConfirmed records an operator's refusal of a pending request.
func (p *Pipeline) DeclineConfirmed(out Outcome) (Outcome, error) {
	if out.Status != StatusPending {
		return out, fmt.Errorf("pipeline: cannot decline request in state %q", out.Status)
	}
	out.Status = StatusRejected
	if err := p.record(out, "declined", "operator declined confirmation"); err != nil {
		return out, err
	}
	return out, nil
}

func (p *Pipeline) execute(ctx context.Context, out Outcome, log *zap.Logger) (Outcome, error) {
	decision := string(out.Decision.Outcome)
	if out.Status == StatusPending {
		decision = "confirmed_execute"
	}

	res, err := p.deps.Runner.Execute(ctx, out.Decision.ActionID, p.deps.Registry)
	if err != nil {
		out.Status = StatusFailed
		out.ExecErr = err.Error()
		log.Error("execution failed",
			zap.String("action_id", string(out.Decision.ActionID)),
			zap.Error(err))
		if recErr := p.record(out, decision, out.ExecErr); recErr != nil {
			return out, recErr
		}
		return out, nil
	}

	out.Status = StatusExecuted
	out.Result = res
	log.Info("command executed",
		zap.String("action_id", string(out.Decision.ActionID)),
		zap.Int("exit_code", res.ExitCode))
	if err := p.record(out, decision, out.Decision.Reason); err != nil {
		return out, err
	}
	return out, nil
}

func (p *Pipeline) reject(out Outcome, reason string, log *zap.Logger) (Outcome, error) {
	out.Status = StatusRejected
	out.Decision.Outcome = router.Reject
	out.Decision.Reason = reason
	log.Info("request rejected", zap.String("reason", reason))
	if err := p.record(out, string(router.Reject), reason); err != nil {
		return out, err
	}
	return out, nil
}

func (p *Pipeline) record(out Outcome, decision, reason string) error {
	entry := audit.Entry{
		RequestID:    out.RequestID,
		Transcript:   out.Transcript,
		ActionID:     string(out.Decision.ActionID),
		Confidence:   out.Decision.Confidence,
		SpeakerScore: out.speakerScore,
		Decision:     decision,
		Reason:       reason,
		RegistryHash: p.deps.RegistryHash,
	}
	if out.Status == StatusExecuted {
		entry.Execution = audit.Execution{Executed: true, ExitCode: out.Result.ExitCode}
	}
	return p.deps.Audit.Record(entry)
}
