package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/meeting-analyzer/internal/types"
)

// Whisper defaults.
const (
	ProviderWhisper       = "whisper"
	DefaultWhisperURL     = "https://api.openai.com/v1/audio/transcriptions"
	DefaultWhisperModel   = "whisper-1"
	DefaultRequestTimeout = 10 * time.Minute
)

// Whisper talks to an OpenAI-compatible /audio/transcriptions endpoint.
type Whisper struct {
	url        string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
}

// NewWhisper creates a Whisper provider.
func NewWhisper(cfg Config) (*Whisper, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultWhisperURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultWhisperModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return nil, fmt.Errorf("whisper API URL must be http(s): %q", cfg.APIURL)
	}

	return &Whisper{
		url:        cfg.APIURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name implements Provider.
func (w *Whisper) Name() string {
	return ProviderWhisper
}

// Transcribe uploads the recording as multipart form data and returns the text.
func (w *Whisper) Transcribe(ctx context.Context, artifact *types.RecordingArtifact) (string, error) {
	file, err := os.Open(artifact.Path)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(artifact.Path))
	if err != nil {
		return "", fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy audio data: %w", err)
	}
	if err := writer.WriteField("model", w.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if w.language != "" {
		if err := writer.WriteField("language", w.language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}

	return payload.Text, nil
}
