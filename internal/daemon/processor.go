package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/auroralab/aurora/internal/pipeline"
	"github.com/auroralab/aurora/internal/speaker"
)

// Processor handles one job file through its lifecycle:
// read, validate, run through the pipeline, write the result to the outbox.
type Processor struct {
	pipe   *pipeline.Pipeline
	outbox string
	logger *zap.Logger
}

// NewProcessor creates a processor writing results to the outbox directory.
func NewProcessor(pipe *pipeline.Pipeline, outbox string, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{pipe: pipe, outbox: outbox, logger: logger}
}

// Process handles a single job file. The input file is removed once a
// result has been written, so a crash mid-job leaves the job in the inbox
// for the startup rescan.
func (p *Processor) Process(ctx context.Context, jobPath string) error {
	// Reject symlinks before reading: a symlinked inbox entry must not
	// pull arbitrary filesystem content into the pipeline.
	fi, err := os.Lstat(jobPath)
	if err != nil {
		return fmt.Errorf("stat job file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("rejected symlink: %s", filepath.Base(jobPath))
	}

	data, err := os.ReadFile(jobPath)
	if err != nil {
		return fmt.Errorf("read job file: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		if werr := p.writeFailedResult("", fmt.Sprintf("invalid JSON: %v", err)); werr != nil {
			return werr
		}
		return os.Remove(jobPath)
	}
	if err := ValidateJob(&job); err != nil {
		if werr := p.writeFailedResult(job.ID, fmt.Sprintf("validation failed: %v", err)); werr != nil {
			return werr
		}
		return os.Remove(jobPath)
	}

	result := p.run(ctx, &job)
	if err := p.writeResult(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return os.Remove(jobPath)
}

func (p *Processor) run(ctx context.Context, job *Job) *Result {
	req := pipeline.Request{Text: job.Text}
	if job.AudioPath != "" {
		sample, err := speaker.ReadWAVFile(job.AudioPath)
		if err != nil {
			return &Result{
				ID:          job.ID,
				Status:      ResultFailed,
				Error:       fmt.Sprintf("read audio: %v", err),
				CompletedAt: time.Now().UTC(),
			}
		}
		req.Audio = &sample
	}

	out, err := p.pipe.Process(ctx, req)
	if err != nil {
		return &Result{
			ID:          job.ID,
			Status:      ResultFailed,
			Error:       err.Error(),
			CompletedAt: time.Now().UTC(),
		}
	}

	result := &Result{
		ID:          job.ID,
		RequestID:   out.RequestID,
		Transcript:  out.Transcript,
		ActionID:    string(out.Decision.ActionID),
		Confidence:  out.Decision.Confidence,
		Reason:      out.Decision.Reason,
		CompletedAt: time.Now().UTC(),
		Outcome:     &out,
	}

	switch out.Status {
	case pipeline.StatusExecuted:
		result.Status = ResultExecuted
		code := out.Result.ExitCode
		result.ExitCode = &code
	case pipeline.StatusPending:
		// No terminal to ask on. The request is parked for a surface that
		// can confirm; nothing has run.
		result.Status = ResultPending
	case pipeline.StatusFailed:
		result.Status = ResultFailed
		result.Error = out.ExecErr
	default:
		result.Status = ResultRejected
	}

	p.logger.Info("job processed",
		zap.String("job_id", job.ID),
		zap.String("status", result.Status),
		zap.String("action_id", result.ActionID))
	return result
}

// writeResult writes a result to the outbox atomically (tmp then rename),
// so outbox consumers never observe a partial file.
func (p *Processor) writeResult(r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	filename := r.ID + ".json"
	tmpPath := filepath.Join(p.outbox, filename+".tmp")
	finalPath := filepath.Join(p.outbox, filename)

	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	return os.Rename(tmpPath, finalPath)
}

// writeFailedResult writes a minimal failed result when the job cannot even
// be parsed.
func (p *Processor) writeFailedResult(id, errMsg string) error {
	if id == "" {
		id = fmt.Sprintf("unknown-%d", time.Now().UnixNano())
	}
	return p.writeResult(&Result{
		ID:          id,
		Status:      ResultFailed,
		Error:       errMsg,
		CompletedAt: time.Now().UTC(),
	})
}
