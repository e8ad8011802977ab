// Package analysis scores sales call transcripts against the 12-point rubric.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/meeting-analyzer/internal/llm"
	"github.com/jonathan/meeting-analyzer/internal/prompts"
	"github.com/jonathan/meeting-analyzer/internal/schemas"
	"github.com/jonathan/meeting-analyzer/internal/types"
)

const promptFile = "analysis.json"

// Analyzer turns a transcript into a validated scorecard.
type Analyzer struct {
	client llm.Client
	logger *slog.Logger
}

// New creates an Analyzer backed by client.
func New(client llm.Client, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{client: client, logger: logger}
}

// LLMConfig returns the model configuration analysis runs with, including the
// system instruction from the prompt file.
func LLMConfig(model string) (*llm.Config, error) {
	system, err := prompts.Get(promptFile, "system")
	if err != nil {
		return nil, fmt.Errorf("failed to load system prompt: %w", err)
	}
	cfg := llm.DefaultConfig().WithModel(model)
	cfg.SystemInstruction = system
	return cfg, nil
}

// Analyze submits the transcript once and returns the decoded scorecard.
// The result is never clamped: any out-of-range score fails with KindValidation.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (*types.Scorecard, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, &AnalysisError{Kind: KindInput, Message: "transcript is empty"}
	}

	prompt, err := prompts.Render(promptFile, "scorecard", map[string]string{
		"Rubric":     RubricText(),
		"Transcript": transcript,
	})
	if err != nil {
		return nil, &AnalysisError{Kind: KindBackend, Message: "failed to build prompt", Cause: err}
	}

	a.logger.Info("analysis request", "model", a.client.Model(), "transcript_chars", len([]rune(transcript)))

	raw, err := a.client.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, &AnalysisError{Kind: KindBackend, Message: "model call failed", Cause: err}
	}

	scorecard, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	a.logger.Info("analysis done", "overall_score", scorecard.OverallScore, "category", scorecard.Category)
	return scorecard, nil
}

// Decode checks raw model output structurally, unmarshals it and checks score bounds.
func Decode(raw string) (*types.Scorecard, error) {
	raw = llm.CleanJSONBlock(raw)
	if raw == "" {
		return nil, &AnalysisError{Kind: KindMalformed, Message: "empty response"}
	}

	if err := schemas.ValidateScorecard(raw); err != nil {
		return nil, &AnalysisError{Kind: KindMalformed, Message: "response does not match scorecard schema", Cause: err}
	}

	var scorecard types.Scorecard
	if err := json.Unmarshal([]byte(raw), &scorecard); err != nil {
		return nil, &AnalysisError{Kind: KindMalformed, Message: "failed to decode scorecard", Cause: err}
	}

	for i, point := range scorecard.Points {
		if point.Title == "" {
			point.Title = Title(i)
			scorecard.Points[i] = point
		}
	}
	scorecard.Category = strings.ToLower(strings.TrimSpace(scorecard.Category))

	if err := scorecard.Validate(); err != nil {
		return nil, &AnalysisError{Kind: KindValidation, Message: "scorecard out of bounds", Cause: err}
	}

	return &scorecard, nil
}
