package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auroralab/aurora/internal/config"
	"github.com/auroralab/aurora/internal/intent"
)

var (
	trainCorpus string
	trainOut    string
	trainEpochs int
	trainLR     float64
)

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().StringVar(&trainCorpus, "corpus", "", "Training corpus CSV with a text,intent header (required)")
	trainCmd.Flags().StringVar(&trainOut, "out", "", "Artifact output directory (default: model_dir from config)")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 0, "Training epochs (default: built-in)")
	trainCmd.Flags().Float64Var(&trainLR, "learning-rate", 0, "Gradient descent learning rate (default: built-in)")
	_ = trainCmd.MarkFlagRequired("corpus")
}

var trainCmd = &cobra.Command{
	Use:   "train --corpus <file>",
	Short: "Train the intent classifier",
	Long: "Fits the TF-IDF vectorizer and softmax classifier on a labeled corpus\n" +
		"and writes the three model artifacts atomically. Training is\n" +
		"deterministic: the same corpus always produces the same artifacts.",
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	outDir := trainOut
	if outDir == "" {
		outDir = cfg.ModelDir
	}

	examples, err := intent.LoadCorpus(trainCorpus)
	if err != nil {
		return err
	}

	opts := intent.DefaultTrainOptions()
	if trainEpochs > 0 {
		opts.Epochs = trainEpochs
	}
	if trainLR > 0 {
		opts.LearningRate = trainLR
	}

	artifacts, err := intent.Train(examples, opts)
	if err != nil {
		return err
	}
	if err := artifacts.Save(outDir); err != nil {
		return err
	}

	fmt.Printf("trained on %d examples, %d intents, %d vocabulary terms -> %s\n",
		len(examples), artifacts.Model.Classes, len(artifacts.Vectorizer.Vocabulary), outDir)
	return nil
}
