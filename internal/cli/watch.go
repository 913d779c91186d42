package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/auroralab/aurora/internal/daemon"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox for transcript jobs",
	Long: "Runs the pipeline as a daemon: .json transcript jobs dropped into the\n" +
		"inbox directory produce result files in the outbox. Requests that would\n" +
		"need confirmation are written out as pending_confirmation; the daemon\n" +
		"never executes them.",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	d, err := daemon.New(rt.pipeline, daemon.Options{
		Inbox:    rt.cfg.Daemon.Inbox,
		Outbox:   rt.cfg.Daemon.Outbox,
		Debounce: rt.cfg.Debounce(),
		Workers:  rt.cfg.Daemon.Workers,
		Logger:   rt.logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return d.Run(ctx)
}
