package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/auroralab/aurora/internal/pipeline"
	"github.com/auroralab/aurora/internal/speaker"
)

var (
	runAudio string
	runYes   bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runAudio, "audio", "", "WAV file the transcript came from, for speaker gating")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Confirm mid-confidence requests without prompting")
}

var runCmd = &cobra.Command{
	Use:   "run [flags] [transcript...]",
	Short: "Process a transcribed utterance through the pipeline",
	Long: "Routes one utterance end to end. With no transcript arguments, reads\n" +
		"utterances line by line from stdin. Exit code 77 means the request was\n" +
		"rejected; mid-confidence requests prompt for confirmation unless --yes.",
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if len(args) > 0 {
		out, err := processOne(ctx, rt, strings.Join(args, " "), runAudio)
		if err != nil {
			return err
		}
		printOutcome(out)
		if out.Status == pipeline.StatusRejected {
			os.Exit(77)
		}
		return nil
	}

	// Interactive mode: one utterance per line.
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprintln(os.Stderr, "reading utterances from stdin, one per line (ctrl-d to exit)")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out, err := processOne(ctx, rt, line, "")
		if err != nil {
			return err
		}
		printOutcome(out)
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

// processOne runs a single utterance, handling the confirmation prompt for
// mid-confidence requests.
func processOne(ctx context.Context, rt *runtime, text, audioPath string) (pipeline.Outcome, error) {
	req := pipeline.Request{Text: text}
	if audioPath != "" {
		sample, err := speaker.ReadWAVFile(audioPath)
		if err != nil {
			return pipeline.Outcome{}, fmt.Errorf("read audio: %w", err)
		}
		req.Audio = &sample
	}

	out, err := rt.pipeline.Process(ctx, req)
	if err != nil {
		return out, err
	}
	if out.Status != pipeline.StatusPending {
		return out, nil
	}

	if runYes || confirm(out) {
		return rt.pipeline.ExecuteConfirmed(ctx, out)
	}
	return rt.pipeline.DeclineConfirmed(out)
}

// confirm asks the operator whether a pending request should run.
func confirm(out pipeline.Outcome) bool {
	fmt.Fprintf(os.Stderr, "run %s (confidence %.2f)? [y/N] ", out.Decision.ActionID, out.Decision.Confidence)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func printOutcome(out pipeline.Outcome) {
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
	if out.Result != nil && out.Result.Stdout != "" {
		fmt.Print(out.Result.Stdout)
	}
	if out.Result != nil && out.Result.Stderr != "" {
		fmt.Fprint(os.Stderr, out.Result.Stderr)
	}
}
