// Package daemon runs the pipeline in watch mode: transcript job files
// dropped into an inbox directory produce result files in an outbox. The
// daemon never prompts; requests that would need confirmation are written
// out as pending so a human-facing surface can pick them up.
package daemon

import (
	"fmt"
	"strings"
	"time"

	"github.com/auroralab/aurora/internal/pipeline"
)

// Job is one transcript dropped into the inbox as a .json file.
type Job struct {
	ID string `json:"id"`
	// Text is the raw transcribed utterance, wakeword included.
	Text string `json:"text"`
	// AudioPath optionally points at the WAV the transcript came from,
	// for speaker gating.
	AudioPath string `json:"audio_path,omitempty"`
}

// maxTranscriptLen bounds job text so a malformed producer cannot feed
// unbounded input into classification.
const maxTranscriptLen = 4096

// ValidateJob checks structural requirements before a job is processed.
func ValidateJob(j *Job) error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("job id is required")
	}
	if strings.ContainsAny(j.ID, "/\\") {
		return fmt.Errorf("job id must not contain path separators")
	}
	if strings.TrimSpace(j.Text) == "" {
		return fmt.Errorf("job text is required")
	}
	if len(j.Text) > maxTranscriptLen {
		return fmt.Errorf("job text exceeds %d bytes", maxTranscriptLen)
	}
	return nil
}

// Result statuses written to the outbox.
const (
	ResultExecuted = "executed"
	ResultPending  = "pending_confirmation"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Result is the outbox record for one processed job.
type Result struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	RequestID   string            `json:"request_id,omitempty"`
	Transcript  string            `json:"transcript,omitempty"`
	ActionID    string            `json:"action_id,omitempty"`
	Confidence  float64           `json:"confidence,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	ExitCode    *int              `json:"exit_code,omitempty"`
	Error       string            `json:"error,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
	Outcome     *pipeline.Outcome `json:"-"`
}
