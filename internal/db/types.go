package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run is a stored pipeline run
type Run struct {
	ID              uuid.UUID  `json:"id"`
	MeetingURL      string     `json:"meetingUrl"`
	LeadID          string     `json:"leadId"`
	Status          string     `json:"status"`
	FailedStage     string     `json:"stage,omitempty"`
	Error           string     `json:"error,omitempty"`
	TranscriptChars int        `json:"transcriptChars"`
	OverallScore    *int       `json:"overallScore,omitempty"`
	Category        string     `json:"category,omitempty"`
	CRMUpdated      bool       `json:"crmUpdated"`
	CRMError        string     `json:"crmError,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// RunDetail is a run together with its stored outputs
type RunDetail struct {
	Run
	Analysis   json.RawMessage `json:"analysis,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
}

// Run statuses
const (
	StatusRunning = "running"
)

// Artifact names written by the pipeline
const (
	ArtifactTranscript = "transcript"
	ArtifactScorecard  = "scorecard"
)
