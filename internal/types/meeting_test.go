package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeetingRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request MeetingRequest
		wantErr string
	}{
		{
			name:    "valid request",
			request: MeetingRequest{MeetingURL: "https://meet.google.com/abc-defg-hij", LeadID: "4821"},
		},
		{
			name:    "missing lead id",
			request: MeetingRequest{MeetingURL: "https://meet.google.com/abc-defg-hij"},
			wantErr: "leadId is required",
		},
		{
			name:    "missing meeting url",
			request: MeetingRequest{LeadID: "4821"},
			wantErr: "meetingUrl is required",
		},
		{
			name:    "non-http scheme",
			request: MeetingRequest{MeetingURL: "ftp://example.com/room", LeadID: "4821"},
			wantErr: "meetingUrl must be an http(s) URL",
		},
		{
			name:    "not a url",
			request: MeetingRequest{MeetingURL: "tomorrow at noon", LeadID: "4821"},
			wantErr: "meetingUrl must be an http(s) URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestMeetingRequest_Normalize(t *testing.T) {
	req := MeetingRequest{MeetingURL: "  https://zoom.us/j/1  ", LeadID: "\t77\n"}
	req.Normalize()

	assert.Equal(t, "https://zoom.us/j/1", req.MeetingURL)
	assert.Equal(t, "77", req.LeadID)
	assert.NoError(t, req.Validate())
}

func TestAnalyzeRequest_Validate(t *testing.T) {
	assert.Error(t, (&AnalyzeRequest{}).Validate())
	assert.Error(t, (&AnalyzeRequest{Transcript: "   \n"}).Validate())
	assert.NoError(t, (&AnalyzeRequest{Transcript: "Seller: hello"}).Validate())
}

func TestTranscript_Len(t *testing.T) {
	tr := Transcript{Text: "Привет"}
	assert.Equal(t, 6, tr.Len())
	assert.False(t, tr.Empty())
	assert.True(t, Transcript{Text: "  "}.Empty())
}

func TestPipelineResult_Partial(t *testing.T) {
	r := &PipelineResult{Success: true, CRM: CRMOutcome{Attempted: true, Updated: false, Error: "502"}}
	assert.True(t, r.Partial())

	assert.Equal(t, RunStatusPartial, r.Status())

	r.CRM.Updated = true
	assert.False(t, r.Partial())
	assert.Equal(t, RunStatusSucceeded, r.Status())

	assert.Equal(t, RunStatusFailed, (&PipelineResult{FailedStage: "recording"}).Status())
}
