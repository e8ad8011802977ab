package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/meeting-analyzer/internal/chat"
	"github.com/jonathan/meeting-analyzer/internal/server"
	"github.com/jonathan/meeting-analyzer/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// runTimeoutMargin is added to RUN_TIMEOUT for the HTTP write timeout and the bot's client timeout.
const runTimeoutMargin = 5 * time.Minute

const botSubject = "telegram-bot"

var (
	servePort  int
	serveNoBot bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the Telegram bot",
	Long: `Start an HTTP server that exposes /join, /join/stream, /analyze and /runs/{id}.
When TELEGRAM_BOT_TOKEN is set the chat bot is started alongside it and talks to the API at API_BASE_URL.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveNoBot, "no-bot", false, "Do not start the Telegram bot")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	cfg := a.cfg

	if cmd.Flags().Changed("port") {
		if servePort < 1 || servePort > 65535 {
			return fmt.Errorf("--port %d out of range", servePort)
		}
		if cfg.Server.APIBaseURL == fmt.Sprintf("http://localhost:%d", cfg.Server.Port) {
			cfg.Server.APIBaseURL = fmt.Sprintf("http://localhost:%d", servePort)
		}
		cfg.Server.Port = servePort
	}
	if err := cfg.ValidateForPipeline(); err != nil {
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

	rateLimit, err := ratelimit.LoadConfig()
	if err != nil {
		return err
	}

	var jwtService *server.JWTService
	if cfg.JWT.Enabled() {
		jwtService = server.NewJWTService(&cfg.JWT)
	} else {
		a.logger.Warn("API_JWT_SECRET not set, API is unauthenticated")
	}

	opts := server.Options{
		Port:      cfg.Server.Port,
		Pipeline:  orchestrator,
		Analyzer:  analyzer,
		JWT:       jwtService,
		RateLimit: rateLimit,
		Logger:    a.logger,
	}
	if cfg.Server.RunTimeout > 0 {
		opts.WriteTimeout = cfg.Server.RunTimeout + runTimeoutMargin
	}
	if database != nil {
		opts.Runs = database
	}
	srv := server.New(opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	switch {
	case serveNoBot:
	case cfg.Telegram.BotToken == "":
		a.logger.Info("TELEGRAM_BOT_TOKEN not set, chat bot disabled")
	default:
		tg, err := chat.NewTelegram(cfg.Telegram.BotToken, a.logger)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		bot := chat.NewBot(newBotClient(cfg.Server.APIBaseURL, jwtService, cfg.Server.RunTimeout), tg, cfg.Server.APIBaseURL, a.logger)
		g.Go(func() error {
			return tg.Run(gctx, bot)
		})
	}

	return g.Wait()
}

// newBotClient builds the bot's API client. With JWT enabled every request carries a freshly minted token.
func newBotClient(baseURL string, jwtService *server.JWTService, runTimeout time.Duration) *chat.HTTPClient {
	var tokens chat.TokenSource
	if jwtService != nil {
		tokens = func() (string, error) {
			return jwtService.GenerateToken(botSubject)
		}
	}
	timeout := time.Duration(0)
	if runTimeout > 0 {
		timeout = runTimeout + runTimeoutMargin
	}
	return chat.NewHTTPClient(baseURL, tokens, timeout)
}
