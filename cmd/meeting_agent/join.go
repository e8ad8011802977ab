package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/meeting-analyzer/internal/observability"
	"github.com/jonathan/meeting-analyzer/internal/pipeline"
	"github.com/jonathan/meeting-analyzer/internal/types"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Record and analyze one meeting without starting the server",
	Long:  "Join the meeting at --url, record it until it ends, transcribe and score it, then update the Bitrix24 lead --lead.",
	RunE:  runJoin,
}

var (
	joinURL    string
	joinLeadID string
	joinJSON   bool
)

func init() {
	joinCmd.Flags().StringVar(&joinURL, "url", "", "Meeting URL (required)")
	joinCmd.Flags().StringVar(&joinLeadID, "lead", "", "Bitrix24 lead ID (required)")
	joinCmd.Flags().BoolVar(&joinJSON, "json", false, "Print the result as JSON instead of a summary")

	_ = joinCmd.MarkFlagRequired("url")
	_ = joinCmd.MarkFlagRequired("lead")

	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, _ []string) error {
	req := types.MeetingRequest{MeetingURL: joinURL, LeadID: joinLeadID}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	if err := a.cfg.ValidateForPipeline(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer, releaseLLM, err := a.newAnalyzer(ctx)
	if err != nil {
		return err
	}
	defer releaseLLM()

	database, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	orchestrator, err := a.newOrchestrator(analyzer, database)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	res, err := orchestrator.Run(ctx, req, func(ev pipeline.ProgressEvent) {
		fmt.Fprintf(errOut, "[%s] %s: %s\n", ev.State, ev.Step, ev.Message)
	})
	if err != nil {
		return err
	}

	if joinJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		observability.NewPrinter(out).PrintResult(res)
	}

	if !res.Success {
		return fmt.Errorf("run %s failed at %s: %s", res.RunID, res.FailedStage, res.Error)
	}
	return nil
}
