package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/meeting-analyzer/internal/observability"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a transcript against the 12-point rubric",
	Long:  "Analyze a meeting transcript file (or stdin with --transcript -) and print the scorecard. No browser, recorder or CRM is used.",
	RunE:  runAnalyze,
}

var (
	analyzeTranscriptFile string
	analyzeJSON           bool
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeTranscriptFile, "transcript", "t", "", "Path to transcript text file, or - for stdin (required)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the scorecard as JSON")

	_ = analyzeCmd.MarkFlagRequired("transcript")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	transcript, err := readTranscript(cmd.InOrStdin(), analyzeTranscriptFile)
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	analyzer, releaseLLM, err := a.newAnalyzer(ctx)
	if err != nil {
		return err
	}
	defer releaseLLM()

	scorecard, err := analyzer.Analyze(ctx, transcript)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(scorecard); err != nil {
			return fmt.Errorf("failed to encode scorecard: %w", err)
		}
		return nil
	}
	observability.NewPrinter(out).PrintScorecard(scorecard)
	return nil
}

func readTranscript(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(data), nil
}
