package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonathan/meeting-analyzer/internal/analysis"
	"github.com/jonathan/meeting-analyzer/internal/browser"
	"github.com/jonathan/meeting-analyzer/internal/config"
	"github.com/jonathan/meeting-analyzer/internal/crm"
	"github.com/jonathan/meeting-analyzer/internal/db"
	"github.com/jonathan/meeting-analyzer/internal/llm"
	"github.com/jonathan/meeting-analyzer/internal/observability"
	"github.com/jonathan/meeting-analyzer/internal/pipeline"
	"github.com/jonathan/meeting-analyzer/internal/recording"
	"github.com/jonathan/meeting-analyzer/internal/transcription"
)

// newLLMClient is replaced in tests.
var newLLMClient = llm.NewClient

// app holds the configuration and logger shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	slog.SetDefault(logger)

	return &app{cfg: cfg, logger: logger}, nil
}

// newAnalyzer returns the scorecard analyzer and a func that releases the model client.
func (a *app) newAnalyzer(ctx context.Context) (*analysis.Analyzer, func(), error) {
	if a.cfg.Gemini.APIKey == "" {
		return nil, nil, fmt.Errorf("config error: GEMINI_API_KEY is required")
	}

	llmConfig, err := analysis.LLMConfig(a.cfg.Gemini.Model)
	if err != nil {
		return nil, nil, err
	}
	client, err := newLLMClient(ctx, llmConfig, a.cfg.Gemini.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	release := func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("failed to close LLM client", "error", err)
		}
	}
	return analysis.New(client, a.logger), release, nil
}

// openStore connects to PostgreSQL when DATABASE_URL is set. A nil DB means run history is off.
func (a *app) openStore(ctx context.Context) (*db.DB, error) {
	if a.cfg.DatabaseURL == "" {
		a.logger.Info("DATABASE_URL not set, run history disabled")
		return nil, nil
	}

	database, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// newOrchestrator wires the browser, recorder, transcriber and CRM client into a pipeline.
func (a *app) newOrchestrator(analyzer pipeline.Analyzer, database *db.DB) (*pipeline.Orchestrator, error) {
	cfg := a.cfg

	backend := browser.NewChromeBackend(browser.ChromeConfig{
		ExecPath:    cfg.Browser.ChromiumPath,
		Headless:    cfg.Browser.Headless,
		UserDataDir: cfg.Browser.UserDataDir,
	})
	launcher := browser.NewLauncher(backend, browser.WaitPolicy{
		MaxDuration:  cfg.RecordingMaxDuration(),
		Ceiling:      cfg.Browser.EndSignalCeiling,
		PollInterval: cfg.Browser.EndSignalPollInterval,
		EndMarkers:   cfg.Browser.EndMarkers,
	}, a.logger)

	recorder := recording.NewController(recording.Config{
		FFmpegPath: cfg.Recording.FFmpegPath,
		Source:     cfg.Recording.Source,
		Dir:        cfg.Recording.Dir,
	}, a.logger)

	provider, err := transcription.NewProvider(transcription.Config{
		Provider: cfg.Transcription.Provider,
		APIURL:   cfg.Transcription.APIURL,
		APIKey:   cfg.Transcription.APIKey,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
	})
	if err != nil {
		return nil, err
	}

	crmClient, err := crm.NewBitrixClient(crm.BitrixConfig{
		BaseURL: cfg.Bitrix.BaseURL,
		Token:   cfg.Bitrix.Token,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Launcher:    launcher,
		Recorder:    pipeline.RecorderFrom(recorder),
		Transcriber: transcription.NewAdapter(provider, a.logger),
		Analyzer:    analyzer,
		CRM:         crmClient,
		RunTimeout:  cfg.Server.RunTimeout,
		Logger:      a.logger,
	}
	// A nil *db.DB must not become a non-nil interface.
	if database != nil {
		opts.Store = database
	}
	return pipeline.New(opts), nil
}
