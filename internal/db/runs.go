package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/meeting-analyzer/internal/types"
)

// CreateRun inserts a running record for a new pipeline run
func (db *DB) CreateRun(ctx context.Context, runID uuid.UUID, req types.MeetingRequest) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO meeting_runs (id, meeting_url, lead_id, status)
		 VALUES ($1, $2, $3, $4)`,
		runID, req.MeetingURL, req.LeadID, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun writes the final outcome of a run
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, result *types.PipelineResult) error {
	var overall *int
	var category *string
	if result.Scorecard != nil {
		overall = &result.Scorecard.OverallScore
		category = &result.Scorecard.Category
	}

	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE meeting_runs
		 SET status = $2, failed_stage = NULLIF($3, ''), error = NULLIF($4, ''),
		     transcript_chars = $5, overall_score = $6, category = $7,
		     crm_updated = $8, crm_error = NULLIF($9, ''), warnings = $10, completed_at = NOW()
		 WHERE id = $1`,
		runID, result.Status(), result.FailedStage, result.Error,
		result.TranscriptChars, overall, category,
		result.CRM.Updated, result.CRM.Error, warnings,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// SaveArtifact stores an output of a run. Strings are stored as text, anything else as JSON.
func (db *DB) SaveArtifact(ctx context.Context, runID uuid.UUID, step, name string, content any) error {
	jsonContent, textContent, err := artifactColumns(content)
	if err != nil {
		return fmt.Errorf("failed to encode artifact %s: %w", name, err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO run_artifacts (run_id, step, name, content, text_content)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, name) DO UPDATE
		 SET step = $2, content = $4, text_content = $5, created_at = NOW()`,
		runID, step, name, jsonContent, textContent,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", name, err)
	}
	return nil
}

// artifactColumns splits content into the JSON and text columns.
func artifactColumns(content any) ([]byte, *string, error) {
	switch v := content.(type) {
	case string:
		return nil, &v, nil
	case json.RawMessage:
		return v, nil, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, nil, err
		}
		return data, nil, nil
	}
}

// GetRun retrieves a run by ID. A missing run returns nil, nil.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var failedStage, errMsg, category, crmError *string
	var warnings []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, meeting_url, lead_id, status, failed_stage, error, transcript_chars,
		        overall_score, category, crm_updated, crm_error, warnings, created_at, completed_at
		 FROM meeting_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.MeetingURL, &run.LeadID, &run.Status, &failedStage, &errMsg, &run.TranscriptChars,
		&run.OverallScore, &category, &run.CRMUpdated, &crmError, &warnings, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.FailedStage = deref(failedStage)
	run.Error = deref(errMsg)
	run.Category = deref(category)
	run.CRMError = deref(crmError)
	if len(warnings) > 0 {
		_ = json.Unmarshal(warnings, &run.Warnings)
	}
	return &run, nil
}

// GetRunDetail retrieves a run with its transcript and scorecard
func (db *DB) GetRunDetail(ctx context.Context, runID uuid.UUID) (*RunDetail, error) {
	run, err := db.GetRun(ctx, runID)
	if err != nil || run == nil {
		return nil, err
	}

	detail := &RunDetail{Run: *run}

	rows, err := db.pool.Query(ctx,
		`SELECT name, content, text_content FROM run_artifacts WHERE run_id = $1`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var content []byte
		var text *string
		if err := rows.Scan(&name, &content, &text); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		switch name {
		case ArtifactScorecard:
			detail.Analysis = json.RawMessage(content)
		case ArtifactTranscript:
			detail.Transcript = deref(text)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read artifacts: %w", err)
	}
	return detail, nil
}

// ListRunsByLead returns the most recent runs for a lead
func (db *DB) ListRunsByLead(ctx context.Context, leadID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, meeting_url, lead_id, status, transcript_chars, overall_score, crm_updated, created_at, completed_at
		 FROM meeting_runs WHERE lead_id = $1 ORDER BY created_at DESC LIMIT $2`,
		leadID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.MeetingURL, &run.LeadID, &run.Status, &run.TranscriptChars,
			&run.OverallScore, &run.CRMUpdated, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
