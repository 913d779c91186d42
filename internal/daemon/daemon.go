package daemon

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/auroralab/aurora/internal/pipeline"
)

// Options configure a daemon run.
type Options struct {
	Inbox    string
	Outbox   string
	Debounce time.Duration
	Workers  int
	Logger   *zap.Logger
}

// Daemon drives the inbox watcher and job processor.
type Daemon struct {
	opts      Options
	processor *Processor
	logger    *zap.Logger
}

// New creates a daemon around a built pipeline.
func New(pipe *pipeline.Pipeline, opts Options) (*Daemon, error) {
	if opts.Inbox == "" || opts.Outbox == "" {
		return nil, fmt.Errorf("daemon: inbox and outbox directories are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	for _, dir := range []string{opts.Inbox, opts.Outbox} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("daemon: create %s: %w", dir, err)
		}
	}
	return &Daemon{
		opts:      opts,
		processor: NewProcessor(pipe, opts.Outbox, opts.Logger),
		logger:    opts.Logger,
	}, nil
}

// Run processes jobs until ctx is cancelled. Jobs already sitting in the
// inbox are handled first, then the watcher takes over.
func (d *Daemon) Run(ctx context.Context) error {
	handle := func(path string) {
		if err := d.processor.Process(ctx, path); err != nil {
			d.logger.Error("job failed", zap.String("path", path), zap.Error(err))
		}
	}

	if err := ScanExisting(d.opts.Inbox, handle); err != nil {
		return fmt.Errorf("daemon: scan inbox: %w", err)
	}

	d.logger.Info("watching inbox",
		zap.String("inbox", d.opts.Inbox),
		zap.String("outbox", d.opts.Outbox),
		zap.Int("workers", d.opts.Workers))

	watcher := NewInboxWatcher(d.opts.Inbox, handle, d.opts.Debounce, d.opts.Workers)
	return watcher.Run(ctx)
}
