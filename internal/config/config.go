// Package config loads service configuration from defaults, an optional TOML file and
// the environment, in that order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the complete service configuration.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Log           LogConfig           `toml:"log"`
	Browser       BrowserConfig       `toml:"browser"`
	Recording     RecordingConfig     `toml:"recording"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Gemini        GeminiConfig        `toml:"gemini"`
	Bitrix        BitrixConfig        `toml:"bitrix"`
	Telegram      TelegramConfig      `toml:"telegram"`
	DatabaseURL   string              `toml:"database_url"`
	JWT           JWTConfig           `toml:"jwt"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `toml:"port"`
	// APIBaseURL is where the chat bot reaches the API.
	APIBaseURL string `toml:"api_base_url"`
	// RunTimeout bounds one /join run.
	RunTimeout time.Duration `toml:"run_timeout"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// BrowserConfig configures Chromium and the end-of-meeting wait.
type BrowserConfig struct {
	ChromiumPath          string        `toml:"chromium_path"`
	Headless              bool          `toml:"headless"`
	UserDataDir           string        `toml:"user_data_dir"`
	EndSignalCeiling      time.Duration `toml:"end_signal_ceiling"`
	EndSignalPollInterval time.Duration `toml:"end_signal_poll_interval"`
	EndMarkers            []string      `toml:"end_markers"`
}

// RecordingConfig configures audio capture.
type RecordingConfig struct {
	Dir        string `toml:"dir"`
	MaxSeconds int    `toml:"max_seconds"`
	Source     string `toml:"source"`
	FFmpegPath string `toml:"ffmpeg_path"`
}

// TranscriptionConfig selects and configures the transcription provider.
type TranscriptionConfig struct {
	Provider string `toml:"provider"`
	APIURL   string `toml:"api_url"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
}

// GeminiConfig configures the analysis model.
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// BitrixConfig configures the CRM webhook.
type BitrixConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// TelegramConfig configures the chat front-end.
type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       3000,
			RunTimeout: 90 * time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Browser: BrowserConfig{
			ChromiumPath:          "/usr/bin/chromium",
			Headless:              true,
			EndSignalCeiling:      60 * time.Minute,
			EndSignalPollInterval: 5 * time.Second,
		},
		Recording: RecordingConfig{
			Dir:        "recordings",
			Source:     "default",
			FFmpegPath: "ffmpeg",
		},
		Transcription: TranscriptionConfig{
			Provider: "whisper",
			APIURL:   "https://api.openai.com/v1/audio/transcriptions",
			Model:    "whisper-1",
		},
		Gemini: GeminiConfig{Model: "gemini-2.5-flash"},
		JWT:    JWTConfig{ExpirationHours: 24},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if non-empty)
// and environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.JWT.resolveSecret(); err != nil {
		return nil, err
	}

	if cfg.Server.APIBaseURL == "" {
		cfg.Server.APIBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []string
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q: %v", key, v, err))
				return
			}
			*dst = d
		}
	}

	num("PORT", &c.Server.Port)
	str("API_BASE_URL", &c.Server.APIBaseURL)
	dur("RUN_TIMEOUT", &c.Server.RunTimeout)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	str("CHROMIUM_PATH", &c.Browser.ChromiumPath)
	boolean("BROWSER_HEADLESS", &c.Browser.Headless)
	str("BROWSER_USER_DATA_DIR", &c.Browser.UserDataDir)
	dur("END_SIGNAL_CEILING", &c.Browser.EndSignalCeiling)
	dur("END_SIGNAL_POLL_INTERVAL", &c.Browser.EndSignalPollInterval)
	if v := os.Getenv("END_MARKERS"); v != "" {
		c.Browser.EndMarkers = splitList(v)
	}

	str("REC_DIR", &c.Recording.Dir)
	num("REC_MAX_SECONDS", &c.Recording.MaxSeconds)
	str("REC_SOURCE", &c.Recording.Source)
	str("FFMPEG_PATH", &c.Recording.FFmpegPath)

	str("TRANSCRIBE_PROVIDER", &c.Transcription.Provider)
	str("WHISPER_API_URL", &c.Transcription.APIURL)
	str("WHISPER_API_KEY", &c.Transcription.APIKey)
	str("WHISPER_MODEL", &c.Transcription.Model)
	str("WHISPER_LANGUAGE", &c.Transcription.Language)

	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("GEMINI_MODEL", &c.Gemini.Model)

	str("BITRIX_BASE_URL", &c.Bitrix.BaseURL)
	str("BITRIX_TOKEN", &c.Bitrix.Token)

	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("DATABASE_URL", &c.DatabaseURL)

	str("API_JWT_SECRET", &c.JWT.Secret)
	str("API_JWT_SECRET_FILE", &c.JWT.SecretFile)
	num("API_JWT_EXPIRATION_HOURS", &c.JWT.ExpirationHours)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ParseDuration accepts Go duration strings ("90m") and plain integers as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RecordingMaxDuration converts MaxSeconds to a duration. Zero selects end-signal mode.
func (c *Config) RecordingMaxDuration() time.Duration {
	return time.Duration(c.Recording.MaxSeconds) * time.Second
}

// RecordingWaitBound is the longest a run can spend waiting for the meeting to end:
// the fixed duration when one is set, otherwise the end-signal ceiling.
func (c *Config) RecordingWaitBound() time.Duration {
	if d := c.RecordingMaxDuration(); d > 0 {
		return d
	}
	return c.Browser.EndSignalCeiling
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: port %d out of range", c.Server.Port)
	}
	if c.Recording.MaxSeconds < 0 {
		return fmt.Errorf("config error: REC_MAX_SECONDS must be non-negative, got %d", c.Recording.MaxSeconds)
	}
	if c.Browser.EndSignalCeiling <= 0 {
		return fmt.Errorf("config error: END_SIGNAL_CEILING must be positive")
	}
	if c.Browser.EndSignalPollInterval <= 0 {
		return fmt.Errorf("config error: END_SIGNAL_POLL_INTERVAL must be positive")
	}
	if c.Server.RunTimeout < 0 {
		return fmt.Errorf("config error: RUN_TIMEOUT must be non-negative")
	}
	// A run must outlive its longest recording wait.
	if bound := c.RecordingWaitBound(); c.Server.RunTimeout > 0 && c.Server.RunTimeout <= bound {
		return fmt.Errorf("config error: RUN_TIMEOUT (%s) must exceed the recording wait (%s)", c.Server.RunTimeout, bound)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config error: LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	for name, raw := range map[string]string{
		"BITRIX_BASE_URL": c.Bitrix.BaseURL,
		"WHISPER_API_URL": c.Transcription.APIURL,
		"API_BASE_URL":    c.Server.APIBaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config error: %s must be an http(s) URL, got %q", name, raw)
		}
	}
	return c.JWT.Validate()
}

// ValidateForPipeline checks the settings needed to run meetings end to end.
func (c *Config) ValidateForPipeline() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("config error: GEMINI_API_KEY is required")
	}
	if c.Bitrix.BaseURL == "" {
		return fmt.Errorf("config error: BITRIX_BASE_URL is required")
	}
	return nil
}
