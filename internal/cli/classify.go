package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/auroralab/aurora/internal/config"
	"github.com/auroralab/aurora/internal/intent"
	"github.com/auroralab/aurora/internal/wakeword"
)

var classifyLabels bool

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&classifyLabels, "labels", false, "List the actions the model can predict and exit")
}

var classifyCmd = &cobra.Command{
	Use:   "classify <transcript...>",
	Short: "Classify an utterance without routing or executing",
	Long: "Strips the wakeword and prints the predicted action and confidence.\n" +
		"Nothing is routed, gated, executed, or audited.",
	Args: cobra.ArbitraryArgs,
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	adapter, err := intent.NewAdapter(cfg.ModelDir)
	if err != nil {
		return fmt.Errorf("load intent model from %s: %w (run `aurora train` first)", cfg.ModelDir, err)
	}

	if classifyLabels {
		labels := adapter.Labels()
		sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
		for _, id := range labels {
			fmt.Println(id)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("classify needs a transcript (or --labels)")
	}

	text := wakeword.Strip(strings.Join(args, " "), cfg.Wakeword.Word, wakeword.Options{
		CaseSensitive: cfg.Wakeword.CaseSensitive,
		StartOnly:     cfg.Wakeword.StartOnly,
	})

	result, err := adapter.Classify(text)
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}
