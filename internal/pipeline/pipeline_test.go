package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/auroralab/aurora/internal/audit"
	"github.com/auroralab/aurora/internal/executor"
	"github.com/auroralab/aurora/internal/model"
	"github.com/auroralab/aurora/internal/registry"
	"github.com/auroralab/aurora/internal/router"
	"github.com/auroralab/aurora/internal/speaker"
	"github.com/auroralab/aurora/internal/wakeword"
)

type stubClassifier struct {
	result model.ClassificationResult
	err    error
}

func (s *stubClassifier) Classify(text string) (model.ClassificationResult, error) {
	if s.err != nil {
		return model.ClassificationResult{}, s.err
	}
	r := s.result
	r.SourceText = text
	return r, nil
}

type stubGate struct {
	verdict model.SpeakerVerdict
	err     error
}

func (s *stubGate) Verify(speaker.Sample) (model.SpeakerVerdict, error) {
	return s.verdict, s.err
}

// spyRunner counts spawns so tests can assert that rejected requests never
// reach execution.
type spyRunner struct {
	calls  int
	result *executor.Result
	err    error
}

func (s *spyRunner) Execute(_ context.Context, id model.ActionID, reg *registry.Registry) (*executor.Result, error) {
	s.calls++
	if _, ok := reg.Lookup(id); !ok {
		return nil, &executor.UnknownActionError{ActionID: id}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func classified(t *testing.T, id string, confidence float64) model.ClassificationResult {
	t.Helper()
	r, err := model.NewClassificationResult(model.ActionID(id), confidence, "")
	if err != nil {
		t.Fatalf("NewClassificationResult() error = %v", err)
	}
	return r
}

func testDeps(t *testing.T, classifier Classifier, gate SpeakerGate, runner Runner) (Deps, string) {
	t.Helper()

	reg, err := registry.Parse(strings.NewReader("OPEN_FIREFOX = firefox\nSHUTDOWN:high = systemctl poweroff\n"))
	if err != nil {
		t.Fatalf("registry.Parse() error = %v", err)
	}

	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := audit.Open(auditPath)
	if err != nil {
		t.Fatalf("audit.Open() error = %v", err)
	}
	t.Cleanup(func() { log.Close() })

	return Deps{
		Wakeword:   wakeword.NewProcessor("aurora", wakeword.DefaultOptions()),
		Classifier: classifier,
		Gate:       gate,
		Router:     router.NewDefault(),
		Runner:     runner,
		Registry:   reg,
		Audit:      log,
	}, auditPath
}

func newTestPipeline(t *testing.T, classifier Classifier, gate SpeakerGate, runner Runner) (*Pipeline, string) {
	t.Helper()
	deps, auditPath := testDeps(t, classifier, gate, runner)
	p, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p, auditPath
}

func TestHighConfidenceAutoExecutes(t *testing.T) {
	runner := &spyRunner{result: &executor.Result{ExitCode: 0}}
	p, auditPath := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.92)}, nil, runner)

	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusExecuted {
		t.Fatalf("Status = %q, want %q", out.Status, StatusExecuted)
	}
	if out.Transcript != "abre firefox" {
		t.Errorf("Transcript = %q, want wakeword stripped", out.Transcript)
	}
	if runner.calls != 1 {
		t.Errorf("runner called %d times, want 1", runner.calls)
	}
	if out.RequestID == "" {
		t.Error("RequestID empty")
	}
	if res := audit.Verify(auditPath); !res.Valid || res.Lines != 1 {
		t.Errorf("audit chain valid=%v lines=%d, want valid single entry", res.Valid, res.Lines)
	}
}

func TestMidConfidenceGoesPendingThenExecutesOnConfirm(t *testing.T) {
	runner := &spyRunner{result: &executor.Result{ExitCode: 0}}
	p, auditPath := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.60)}, nil, runner)

	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusPending {
		t.Fatalf("Status = %q, want %q", out.Status, StatusPending)
	}
	if runner.calls != 0 {
		t.Fatalf("runner called %d times before confirmation, want 0", runner.calls)
	}

	confirmed, err := p.ExecuteConfirmed(context.Background(), out)
	if err != nil {
		t.Fatalf("ExecuteConfirmed() error = %v", err)
	}
	if confirmed.Status != StatusExecuted {
		t.Fatalf("Status after confirm = %q, want %q", confirmed.Status, StatusExecuted)
	}
	if runner.calls != 1 {
		t.Errorf("runner called %d times, want 1", runner.calls)
	}
	if res := audit.Verify(auditPath); !res.Valid || res.Lines != 2 {
		t.Errorf("audit chain valid=%v lines=%d, want 2 entries", res.Valid, res.Lines)
	}
}

func TestLowConfidenceRejectsWithoutSpawning(t *testing.T) {
	runner := &spyRunner{result: &executor.Result{ExitCode: 0}}
	p, _ := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.30)}, nil, runner)

	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusRejected {
		t.Fatalf("Status = %q, want %q", out.Status, StatusRejected)
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times for rejected request, want 0", runner.calls)
	}
	if out.Decision.Reason == "" {
		t.Error("rejection carries no reason")
	}
}

func TestEmptyTranscriptAfterWakewordRejects(t *testing.T) {
	runner := &spyRunner{}
	p, _ := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.99)}, nil, runner)

	out, err := p.Process(context.Background(), Request{Text: "aurora"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusRejected {
		t.Fatalf("Status = %q, want %q", out.Status, StatusRejected)
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times, want 0", runner.calls)
	}
}

func TestClassifierErrorRejects(t *testing.T) {
	runner := &spyRunner{}
	p, _ := newTestPipeline(t, &stubClassifier{err: errors.New("vocabulary mismatch")}, nil, runner)

	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusRejected {
		t.Fatalf("Status = %q, want %q", out.Status, StatusRejected)
	}
	if !strings.Contains(out.Decision.Reason, "classification failed") {
		t.Errorf("Reason = %q, want classification failure", out.Decision.Reason)
	}
}

func TestUnauthorizedSpeakerDominatesHighConfidence(t *testing.T) {
	runner := &spyRunner{result: &executor.Result{ExitCode: 0}}
	gate := &stubGate{verdict: model.SpeakerVerdict{Authorized: false, Score: 0.12}}
	p, _ := newTestPipeline(t, &stubClassifier{result: classified(t, "SHUTDOWN", 1.0)}, gate, runner)

	audio := &speaker.Sample{Rate: 16000, PCM: make([]float64, 16000)}
	out, err := p.Process(context.Background(), Request{Text: "aurora apaga el sistema", Audio: audio})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusRejected {
		t.Fatalf("Status = %q, want %q", out.Status, StatusRejected)
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times, want 0", runner.calls)
	}
	if !strings.Contains(out.Decision.Reason, "speaker not authorized") {
		t.Errorf("Reason = %q, want speaker rejection", out.Decision.Reason)
	}
}

func TestUntrainedGateFailsClosed(t *testing.T) {
	runner := &spyRunner{}
	gate := &stubGate{err: speaker.ErrModelNotTrained}
	p, _ := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.99)}, gate, runner)

	audio := &speaker.Sample{Rate: 16000, PCM: make([]float64, 16000)}
	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox", Audio: audio})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusRejected {
		t.Fatalf("Status = %q, want %q", out.Status, StatusRejected)
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times, want 0", runner.calls)
	}
}

func TestGateEnabledWithoutAudioRejects(t *testing.T) {
	runner := &spyRunner{}
	gate := &stubGate{verdict: model.SpeakerVerdict{Authorized: true, Score: 0.9}}
	p, _ := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.99)}, gate, runner)

	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusRejected {
		t.Fatalf("Status = %q, want %q", out.Status, StatusRejected)
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times, want 0", runner.calls)
	}
}

func TestAuthorizedSpeakerPassesThrough(t *testing.T) {
	runner := &spyRunner{result: &executor.Result{ExitCode: 0}}
	gate := &stubGate{verdict: model.SpeakerVerdict{Authorized: true, Score: 0.93}}
	p, _ := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.92)}, gate, runner)

	audio := &speaker.Sample{Rate: 16000, PCM: make([]float64, 16000)}
	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox", Audio: audio})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusExecuted {
		t.Fatalf("Status = %q, want %q", out.Status, StatusExecuted)
	}
	if runner.calls != 1 {
		t.Errorf("runner called %d times, want 1", runner.calls)
	}
}

func TestExecutionFailureIsRecorded(t *testing.T) {
	runner := &spyRunner{err: fmt.Errorf("spawn: no such file")}
	p, auditPath := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.92)}, nil, runner)

	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Status != StatusFailed {
		t.Fatalf("Status = %q, want %q", out.Status, StatusFailed)
	}
	if out.ExecErr == "" {
		t.Error("ExecErr empty after failed execution")
	}
	if res := audit.Verify(auditPath); !res.Valid || res.Lines != 1 {
		t.Errorf("audit chain valid=%v lines=%d", res.Valid, res.Lines)
	}
}

func TestDeclineConfirmedRecordsRejection(t *testing.T) {
	runner := &spyRunner{result: &executor.Result{ExitCode: 0}}
	p, auditPath := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.60)}, nil, runner)

	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	declined, err := p.DeclineConfirmed(out)
	if err != nil {
		t.Fatalf("DeclineConfirmed() error = %v", err)
	}
	if declined.Status != StatusRejected {
		t.Fatalf("Status = %q, want %q", declined.Status, StatusRejected)
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times, want 0", runner.calls)
	}
	if res := audit.Verify(auditPath); !res.Valid || res.Lines != 2 {
		t.Errorf("audit chain valid=%v lines=%d, want 2 entries", res.Valid, res.Lines)
	}
}

func TestExecuteConfirmedRejectsNonPendingOutcome(t *testing.T) {
	runner := &spyRunner{result: &executor.Result{ExitCode: 0}}
	p, _ := newTestPipeline(t, &stubClassifier{result: classified(t, "OPEN_FIREFOX", 0.30)}, nil, runner)

	out, err := p.Process(context.Background(), Request{Text: "aurora abre firefox"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, err := p.ExecuteConfirmed(context.Background(), out); err == nil {
		t.Error("ExecuteConfirmed(rejected outcome) succeeded, want error")
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times, want 0", runner.calls)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	deps, _ := testDeps(t, &stubClassifier{}, nil, &spyRunner{})
	deps.Classifier = nil
	if _, err := New(deps); err == nil {
		t.Error("New() without classifier succeeded, want error")
	}
}
