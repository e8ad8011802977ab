package types

// CRMOutcome reports what happened to the CRM write of a run.
type CRMOutcome struct {
	Attempted bool   `json:"attempted"`
	Updated   bool   `json:"updated"`
	Error     string `json:"error,omitempty"`
}

// PipelineResult is the final outcome of one pipeline run.
// Exactly one of Scorecard and Error is set; a CRM failure is reported
// through CRM and leaves Scorecard in place.
type PipelineResult struct {
	RunID           string     `json:"runId"`
	Success         bool       `json:"success"`
	MeetingURL      string     `json:"meetingUrl"`
	LeadID          string     `json:"leadId"`
	TranscriptChars int        `json:"transcriptChars,omitempty"`
	Scorecard       *Scorecard `json:"analysis,omitempty"`
	CRM             CRMOutcome `json:"crm"`
	FailedStage     string     `json:"stage,omitempty"`
	Error           string     `json:"error,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"`

	// Err is the typed failure behind Error.
	Err error `json:"-"`
}

// Partial reports a run whose analysis succeeded but whose CRM write did not.
func (r *PipelineResult) Partial() bool {
	return r.Success && r.CRM.Attempted && !r.CRM.Updated
}

// Run statuses reported by Status.
const (
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// Status summarizes the result as succeeded, partial or failed.
func (r *PipelineResult) Status() string {
	switch {
	case r.Partial():
		return RunStatusPartial
	case r.Success:
		return RunStatusSucceeded
	default:
		return RunStatusFailed
	}
}
