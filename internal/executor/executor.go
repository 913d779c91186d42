// Package executor runs whitelisted commands. The registry lookup here is
// the last, non-bypassable enforcement point: however an action identifier
// reached this call, it does not run unless the registry contains it. The
// process is spawned from the literal argv token list with no shell layer
// at any point.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/auroralab/aurora/internal/model"
	"github.com/auroralab/aurora/internal/registry"
)

// DefaultTimeout bounds a single command run.
const DefaultTimeout = 30 * time.Second

// Result captures the outcome of one process spawn. Output is captured
// rather than leaked to the controlling terminal.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// UnknownActionError means an action identifier reached execution without
// being whitelisted. Upstream is supposed to have routed only registered
// actions, so this is a security-relevant event, not a routine failure.
type UnknownActionError struct {
	ActionID model.ActionID
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("executor: action %q is not in the command registry", e.ActionID)
}

// SpawnError means the process could not be started or failed abnormally
// before producing an exit code.
type SpawnError struct {
	ActionID model.ActionID
	Err      error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("executor: spawn %q: %v", e.ActionID, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TimeoutError means the command exceeded its deadline and was terminated.
// Partial output captured before termination is preserved.
type TimeoutError struct {
	ActionID model.ActionID
	Timeout  time.Duration
	Partial  Result
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("executor: action %q timed out after %s", e.ActionID, e.Timeout)
}

// CanceledError means the caller's context was cancelled and the process
// was terminated before completing. Partial output captured before
// termination is preserved.
type CanceledError struct {
	ActionID model.ActionID
	Err      error
	Partial  Result
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("executor: action %q cancelled: %v", e.ActionID, e.Err)
}

func (e *CanceledError) Unwrap() error { return e.Err }

// Executor spawns whitelisted commands with a bounded timeout.
// Safe for concurrent use; it holds no per-call state.
type Executor struct {
	timeout time.Duration
}

// New creates an executor. A non-positive timeout falls back to
// DefaultTimeout.
func New(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute looks up the action in the registry and runs its argv. Exactly
// one process is spawned per call; nothing is ever retried (a failed system
// action is not known to be safe to re-run, so retry policy belongs to the
// caller).
func (e *Executor) Execute(ctx context.Context, id model.ActionID, reg *registry.Registry) (*Result, error) {
	spec, ok := reg.Lookup(id)
	if !ok {
		return nil, &UnknownActionError{ActionID: id}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// exec.CommandContext receives the literal token list. There is no
	// string concatenation and no shell between here and the kernel.
	cmd := exec.CommandContext(runCtx, spec.Argv[0], spec.Argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, &TimeoutError{
			ActionID: id,
			Timeout:  e.timeout,
			Partial: Result{
				Stdout: stdout.String(),
				Stderr: stderr.String(),
			},
		}
	}
	if runCtx.Err() != nil {
		// Parent context cancelled (operator interrupt). The killed process
		// must not masquerade as a completed run.
		return nil, &CanceledError{
			ActionID: id,
			Err:      runCtx.Err(),
			Partial: Result{
				Stdout: stdout.String(),
				Stderr: stderr.String(),
			},
		}
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, &SpawnError{ActionID: id, Err: err}
		}
	}

	return &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}
