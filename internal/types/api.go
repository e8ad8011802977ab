package types

// AnalyzeResponse is the body of POST /analyze.
type AnalyzeResponse struct {
	Success bool       `json:"success"`
	Report  *Scorecard `json:"report,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// JoinResponse is the body of a successful POST /join, including CRM partial success.
type JoinResponse struct {
	OK              bool       `json:"ok"`
	RunID           string     `json:"runId"`
	LeadID          string     `json:"leadId"`
	TranscriptChars int        `json:"transcriptChars"`
	Analysis        *Scorecard `json:"analysis"`
	CRMUpdated      bool       `json:"crmUpdated"`
	CRMError        string     `json:"crmError,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"`
}

// JoinError is the body of a failed POST /join. Stage is empty when no stage ran.
type JoinError struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
	RunID string `json:"runId,omitempty"`
}

// NewJoinResponse builds the success body from a finished run.
func NewJoinResponse(r *PipelineResult) JoinResponse {
	return JoinResponse{
		OK:              r.Success,
		RunID:           r.RunID,
		LeadID:          r.LeadID,
		TranscriptChars: r.TranscriptChars,
		Analysis:        r.Scorecard,
		CRMUpdated:      r.CRM.Updated,
		CRMError:        r.CRM.Error,
		Warnings:        r.Warnings,
	}
}
