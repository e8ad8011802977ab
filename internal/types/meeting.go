// Package types provides type definitions for structured data used throughout the meeting analyzer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"
)

// MeetingRequest is the caller's intent for one pipeline run.
type MeetingRequest struct {
	MeetingURL string `json:"meetingUrl" validate:"required,url"`
	LeadID     string `json:"leadId" validate:"required"`
}

// Normalize trims surrounding whitespace from all fields.
func (r *MeetingRequest) Normalize() {
	r.MeetingURL = strings.TrimSpace(r.MeetingURL)
	r.LeadID = strings.TrimSpace(r.LeadID)
}

// Validate validates the MeetingRequest using the validator.
func (r *MeetingRequest) Validate() error {
	if err := firstFieldError(validate.Struct(r)); err != nil {
		return err
	}
	if !strings.HasPrefix(r.MeetingURL, "http://") && !strings.HasPrefix(r.MeetingURL, "https://") {
		return &FieldError{Field: "meetingUrl", Tag: "http_url"}
	}
	return nil
}

// AnalyzeRequest is the body of a transcript-only analysis request.
type AnalyzeRequest struct {
	Transcript string `json:"transcript" validate:"required"`
}

// Validate validates the AnalyzeRequest using the validator.
func (r *AnalyzeRequest) Validate() error {
	if strings.TrimSpace(r.Transcript) == "" {
		return &FieldError{Field: "transcript", Tag: "required"}
	}
	return firstFieldError(validate.Struct(r))
}

// RecordingArtifact is a finished audio capture on disk.
type RecordingArtifact struct {
	Path      string        `json:"path"`
	Duration  time.Duration `json:"duration"`
	SizeBytes int64         `json:"size_bytes"`
}

// Transcript is the text of a call.
type Transcript struct {
	Text string `json:"text"`
}

// Len returns the transcript length in characters.
func (t Transcript) Len() int {
	return len([]rune(t.Text))
}

// Empty reports whether the transcript carries no usable text.
func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}
