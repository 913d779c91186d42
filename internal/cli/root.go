// Package cli implements the aurora command surface.
package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aurora",
	Short: "Confidence-gated voice command authorization and dispatch",
	Long: "Takes transcribed utterances through wakeword stripping, intent\n" +
		"classification, an optional speaker gate, and confidence routing before\n" +
		"any whitelisted command is executed. Every decision lands in a\n" +
		"hash-chained audit log.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env for local overrides; absence is not an error.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML (default: ~/.aurora/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger. Verbose mode uses the development
// encoder with debug level; otherwise structured JSON at info.
func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
