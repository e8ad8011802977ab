package transcription

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jonathan/meeting-analyzer/internal/types"
)

// Adapter submits a recording to its provider exactly once.
type Adapter struct {
	provider Provider
	logger   *slog.Logger
}

// NewAdapter creates an Adapter.
func NewAdapter(provider Provider, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{provider: provider, logger: logger}
}

// Transcribe returns a non-empty transcript or a *TranscriptionError.
func (a *Adapter) Transcribe(ctx context.Context, artifact *types.RecordingArtifact) (types.Transcript, error) {
	name := a.provider.Name()
	if artifact == nil || artifact.Path == "" {
		return types.Transcript{}, &TranscriptionError{Provider: name, Message: "no recording to transcribe"}
	}

	start := time.Now()
	a.logger.Info("transcription started", "provider", name, "path", artifact.Path, "bytes", artifact.SizeBytes)

	text, err := a.provider.Transcribe(ctx, artifact)
	if err != nil {
		return types.Transcript{}, &TranscriptionError{Provider: name, Message: "provider call failed", Cause: err}
	}

	transcript := types.Transcript{Text: strings.TrimSpace(text)}
	if transcript.Empty() {
		return types.Transcript{}, &TranscriptionError{Provider: name, Message: "provider returned an empty transcript"}
	}

	a.logger.Info("transcript received", "provider", name, "chars", transcript.Len(), "took", time.Since(start).Round(time.Millisecond))
	return transcript, nil
}
