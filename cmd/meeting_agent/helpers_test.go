package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// getBinaryPath returns the path to the meeting_agent binary for testing
func getBinaryPath(t *testing.T) string {
	binaryName := "meeting_agent"
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", binaryName)
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/meeting_agent ./cmd/meeting_agent'", binaryPath)
	}

	return binaryPath
}

// executeCommand runs rootCmd in-process with args and returns everything written to stdout and stderr.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so commands can run more than once per process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// clearEnv blanks every variable the config layer reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "API_BASE_URL", "RUN_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
		"CHROMIUM_PATH", "BROWSER_HEADLESS", "BROWSER_USER_DATA_DIR", "END_SIGNAL_CEILING",
		"END_SIGNAL_POLL_INTERVAL", "END_MARKERS", "REC_DIR", "REC_MAX_SECONDS", "REC_SOURCE",
		"FFMPEG_PATH", "TRANSCRIBE_PROVIDER", "WHISPER_API_URL", "WHISPER_API_KEY", "WHISPER_MODEL",
		"WHISPER_LANGUAGE", "GEMINI_API_KEY", "GEMINI_MODEL", "BITRIX_BASE_URL", "BITRIX_TOKEN",
		"TELEGRAM_BOT_TOKEN", "DATABASE_URL", "API_JWT_SECRET", "API_JWT_SECRET_FILE", "API_JWT_EXPIRATION_HOURS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}
