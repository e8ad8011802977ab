// Package crm writes analysis summaries back to CRM lead records.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Updater writes fields to one CRM record.
type Updater interface {
	Update(ctx context.Context, recordID string, fields map[string]string) (*Ack, error)
}

// Ack is the CRM's confirmation of a write.
type Ack struct {
	RecordID string
	Status   int
}

// BitrixConfig configures the Bitrix24 webhook client.
type BitrixConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// BitrixClient updates Bitrix24 leads through an inbound webhook.
type BitrixClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBitrixClient creates a BitrixClient.
func NewBitrixClient(cfg BitrixConfig, logger *slog.Logger) (*BitrixClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("bitrix base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := base
	if token := strings.Trim(cfg.Token, "/ "); token != "" {
		endpoint += "/" + token
	}
	endpoint += "/crm.lead.update.json"

	return &BitrixClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

type leadUpdateRequest struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

type leadUpdateResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// Update sends a single crm.lead.update call. Success requires a 2xx status and "result": true.
func (c *BitrixClient) Update(ctx context.Context, recordID string, fields map[string]string) (*Ack, error) {
	payload, err := json.Marshal(leadUpdateRequest{ID: recordID, Fields: fields})
	if err != nil {
		return nil, &CrmUpdateError{RecordID: recordID, Cause: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &CrmUpdateError{RecordID: recordID, Cause: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &CrmUpdateError{RecordID: recordID, Cause: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CrmUpdateError{RecordID: recordID, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded leadUpdateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &CrmUpdateError{RecordID: recordID, Status: resp.StatusCode, Body: strings.TrimSpace(string(body)), Cause: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.Error != "" || strings.TrimSpace(string(decoded.Result)) != "true" {
		msg := decoded.ErrorDescription
		if msg == "" {
			msg = decoded.Error
		}
		if msg == "" {
			msg = "update not confirmed: " + strings.TrimSpace(string(body))
		}
		return nil, &CrmUpdateError{RecordID: recordID, Status: resp.StatusCode, Body: msg}
	}

	c.logger.Info("crm lead updated", "lead_id", recordID, "fields", len(fields))
	return &Ack{RecordID: recordID, Status: resp.StatusCode}, nil
}
