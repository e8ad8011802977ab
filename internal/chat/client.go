package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/meeting-analyzer/internal/types"
)

// API is the part of the HTTP API the bot drives.
type API interface {
	Join(ctx context.Context, req types.MeetingRequest) (*types.JoinResponse, error)
	Analyze(ctx context.Context, transcript string) (*types.Scorecard, error)
	Health(ctx context.Context) error
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
	Stage      string
}

func (e *APIError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s (stage: %s)", e.Message, e.Stage)
	}
	return e.Message
}

// TokenSource returns the bearer token for the next request.
type TokenSource func() (string, error)

// StaticToken always returns token.
func StaticToken(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

// HTTPClient calls the meeting analyzer API over HTTP.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// NewHTTPClient creates a client for baseURL. tokens may be nil when the API is open.
// timeout must cover a whole meeting run.
func NewHTTPClient(baseURL string, tokens TokenSource, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: timeout},
	}
}

// Join runs a meeting through POST /join.
func (c *HTTPClient) Join(ctx context.Context, req types.MeetingRequest) (*types.JoinResponse, error) {
	var resp types.JoinResponse
	var fail types.JoinError
	status, err := c.post(ctx, "/join", req, &resp, &fail)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || !resp.OK {
		return nil, &APIError{StatusCode: status, Message: orDefault(fail.Error, http.StatusText(status)), Stage: fail.Stage}
	}
	return &resp, nil
}

// Analyze scores a transcript through POST /analyze.
func (c *HTTPClient) Analyze(ctx context.Context, transcript string) (*types.Scorecard, error) {
	var resp types.AnalyzeResponse
	status, err := c.post(ctx, "/analyze", types.AnalyzeRequest{Transcript: transcript}, &resp, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || !resp.Success || resp.Report == nil {
		return nil, &APIError{StatusCode: status, Message: orDefault(resp.Error, http.StatusText(status))}
	}
	return resp.Report, nil
}

// Health checks GET /health.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api unreachable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

// post sends body as JSON and decodes a 2xx answer into ok and anything else into fail.
func (c *HTTPClient) post(ctx context.Context, path string, body, ok, fail any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		token, err := c.tokens()
		if err != nil {
			return 0, fmt.Errorf("failed to get api token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read api response: %w", err)
	}

	target := fail
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		target = ok
	}
	if err := json.Unmarshal(raw, target); err != nil {
		if target == ok {
			return resp.StatusCode, fmt.Errorf("failed to decode api response: %w", err)
		}
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: orDefault(strings.TrimSpace(string(raw)), http.StatusText(resp.StatusCode))}
	}
	return resp.StatusCode, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
