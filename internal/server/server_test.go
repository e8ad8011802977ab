package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/meeting-analyzer/internal/analysis"
	"github.com/jonathan/meeting-analyzer/internal/browser"
	"github.com/jonathan/meeting-analyzer/internal/config"
	"github.com/jonathan/meeting-analyzer/internal/db"
	"github.com/jonathan/meeting-analyzer/internal/pipeline"
	"github.com/jonathan/meeting-analyzer/internal/server/ratelimit"
	"github.com/jonathan/meeting-analyzer/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM answers every prompt with a fixed response.
type fakeLLM struct {
	response string
	err      error
	calls    atomic.Int32
}

func (f *fakeLLM) GenerateJSON(context.Context, string) (string, error) {
	f.calls.Add(1)
	return f.response, f.err
}
func (f *fakeLLM) Model() string { return "fake" }
func (f *fakeLLM) Close() error  { return nil }

func scorecardJSON(overall, point int) string {
	points := make([]string, 0, types.CriteriaCount)
	for i := 1; i <= types.CriteriaCount; i++ {
		points = append(points, fmt.Sprintf(`"%d":{"score":%d,"notes":"note %d"}`, i, point, i))
	}
	return fmt.Sprintf(`{"overallScore":%d,"category":"warm","points":{%s},"summary":"Good call."}`,
		overall, strings.Join(points, ","))
}

func testScorecard() *types.Scorecard {
	sc, err := analysis.Decode(scorecardJSON(64, 6))
	if err != nil {
		panic(err)
	}
	return sc
}

// fakeRunner returns a canned result and records every request.
type fakeRunner struct {
	mu       sync.Mutex
	result   *types.PipelineResult
	err      error
	events   []pipeline.ProgressEvent
	requests []types.MeetingRequest
}

func (f *fakeRunner) Run(_ context.Context, req types.MeetingRequest, onProgress pipeline.ProgressCallback) (*types.PipelineResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if onProgress != nil {
		for _, ev := range f.events {
			onProgress(ev)
		}
	}
	return f.result, f.err
}

// countingLauncher counts launches and fails them.
type countingLauncher struct {
	launches atomic.Int32
}

func (l *countingLauncher) Launch(context.Context, string) (browser.Page, browser.Browser, error) {
	l.launches.Add(1)
	return nil, nil, &browser.LaunchError{Message: "not in tests"}
}

func (l *countingLauncher) AwaitEnd(context.Context, browser.Page) (browser.WaitOutcome, error) {
	return browser.WaitOutcome{}, nil
}

type fakeRuns struct {
	detail *db.RunDetail
	err    error
}

func (f *fakeRuns) GetRunDetail(_ context.Context, id uuid.UUID) (*db.RunDetail, error) {
	if f.detail == nil || f.detail.ID != id {
		return nil, f.err
	}
	return f.detail, f.err
}

func newTestServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.RateLimit == nil {
		opts.RateLimit = &ratelimit.Config{Enabled: false}
	}
	if opts.Pipeline == nil {
		opts.Pipeline = &fakeRunner{}
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.New(&fakeLLM{response: scorecardJSON(70, 7)}, quietLogger())
	}
	return New(opts)
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(Options{})

	w := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestAnalyzeEndpoint_Success(t *testing.T) {
	llm := &fakeLLM{response: "```json\n" + scorecardJSON(82, 8) + "\n```"}
	s := newTestServer(Options{Analyzer: analysis.New(llm, quietLogger())})

	transcript := strings.Repeat("Manager: tell me about your process. ", 14)
	require.GreaterOrEqual(t, len(transcript), 500)
	body, err := json.Marshal(map[string]string{"transcript": transcript})
	require.NoError(t, err)

	w := do(t, s, http.MethodPost, "/analyze", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Report)
	assert.Len(t, resp.Report.Points, types.CriteriaCount)
	assert.Equal(t, 82, resp.Report.OverallScore)
	assert.GreaterOrEqual(t, resp.Report.OverallScore, 0)
	assert.LessOrEqual(t, resp.Report.OverallScore, 100)
	for i, p := range resp.Report.Points {
		assert.GreaterOrEqual(t, p.Score, 0, "point %d", i)
		assert.LessOrEqual(t, p.Score, 10, "point %d", i)
		assert.NotEmpty(t, p.Title, "point %d", i)
	}
	assert.Equal(t, int32(1), llm.calls.Load())
}

func TestAnalyzeEndpoint_BadRequest(t *testing.T) {
	llm := &fakeLLM{response: scorecardJSON(70, 7)}
	s := newTestServer(Options{Analyzer: analysis.New(llm, quietLogger())})

	for name, body := range map[string]string{
		"invalid json":     `{"transcript":`,
		"missing":          `{}`,
		"blank transcript": `{"transcript":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/analyze", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp types.AnalyzeResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
	assert.Zero(t, llm.calls.Load())
}

func TestAnalyzeEndpoint_Failures(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
	}{
		{"backend error", &fakeLLM{err: fmt.Errorf("quota exceeded")}},
		{"malformed output", &fakeLLM{response: "I cannot help with that"}},
		{"out of bounds", &fakeLLM{response: scorecardJSON(150, 11)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(Options{Analyzer: analysis.New(tt.llm, quietLogger())})

			w := do(t, s, http.MethodPost, "/analyze", `{"transcript":"a long enough transcript"}`)
			assert.Equal(t, http.StatusInternalServerError, w.Code)

			var resp types.AnalyzeResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Report)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestJoinEndpoint_MissingLeadID_NeverLaunches(t *testing.T) {
	launcher := &countingLauncher{}
	orch := pipeline.New(pipeline.Options{Launcher: launcher, Logger: quietLogger()})
	s := newTestServer(Options{Pipeline: orch})

	for _, body := range []string{
		`{"meetingUrl":"https://meet.google.com/abc-defg-hij"}`,
		`{"meetingUrl":"https://meet.google.com/abc-defg-hij","leadId":"  "}`,
		`{"leadId":"42"}`,
		`{"meetingUrl":"not a url","leadId":"42"}`,
		`not json`,
	} {
		w := do(t, s, http.MethodPost, "/join", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)

		var resp types.JoinError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)
		assert.Empty(t, resp.Stage)
	}
	assert.Zero(t, launcher.launches.Load())
}

func TestJoinEndpoint_Success(t *testing.T) {
	runner := &fakeRunner{result: &types.PipelineResult{
		RunID:           "run-1",
		Success:         true,
		LeadID:          "42",
		TranscriptChars: 5120,
		Scorecard:       testScorecard(),
		CRM:             types.CRMOutcome{Attempted: true, Updated: true},
	}}
	s := newTestServer(Options{Pipeline: runner})

	w := do(t, s, http.MethodPost, "/join", `{"meetingUrl":"https://meet.google.com/x","leadId":"42"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.JoinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "42", resp.LeadID)
	assert.Equal(t, 5120, resp.TranscriptChars)
	assert.True(t, resp.CRMUpdated)
	assert.Empty(t, resp.CRMError)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, 64, resp.Analysis.OverallScore)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, "https://meet.google.com/x", runner.requests[0].MeetingURL)
}

func TestJoinEndpoint_CRMFailureIsPartialSuccess(t *testing.T) {
	runner := &fakeRunner{result: &types.PipelineResult{
		RunID:     "run-2",
		Success:   true,
		LeadID:    "42",
		Scorecard: testScorecard(),
		CRM:       types.CRMOutcome{Attempted: true, Error: "bitrix update of lead 42 failed with status 503"},
		Warnings:  []string{"crm update failed"},
	}}
	s := newTestServer(Options{Pipeline: runner})

	w := do(t, s, http.MethodPost, "/join", `{"meetingUrl":"https://meet.google.com/x","leadId":"42"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.JoinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.False(t, resp.CRMUpdated)
	assert.Contains(t, resp.CRMError, "503")
	assert.NotNil(t, resp.Analysis)
	assert.Equal(t, []string{"crm update failed"}, resp.Warnings)
}

func TestJoinEndpoint_StageFailure(t *testing.T) {
	runner := &fakeRunner{result: &types.PipelineResult{
		RunID:       "run-3",
		LeadID:      "42",
		FailedStage: string(pipeline.StateTranscribing),
		Error:       "transcription failed: empty transcript",
	}}
	s := newTestServer(Options{Pipeline: runner})

	w := do(t, s, http.MethodPost, "/join", `{"meetingUrl":"https://meet.google.com/x","leadId":"42"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp types.JoinError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "transcribing", resp.Stage)
	assert.Equal(t, "run-3", resp.RunID)
	assert.Contains(t, resp.Error, "empty transcript")
}

func TestJoinEndpoint_Busy(t *testing.T) {
	s := newTestServer(Options{Pipeline: &fakeRunner{err: pipeline.ErrRunInProgress}})

	w := do(t, s, http.MethodPost, "/join", `{"meetingUrl":"https://meet.google.com/x","leadId":"42"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already in progress")
}

// readEvents parses an SSE body into (event, data) pairs.
func readEvents(t *testing.T, body string) [][2]string {
	t.Helper()
	var events [][2]string
	var name string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			events = append(events, [2]string{name, strings.TrimPrefix(line, "data: ")})
		}
	}
	return events
}

func TestJoinStream(t *testing.T) {
	runner := &fakeRunner{
		events: []pipeline.ProgressEvent{
			{Step: string(pipeline.StateLaunching), State: pipeline.ProgressStarted},
			{Step: string(pipeline.StateLaunching), State: pipeline.ProgressCompleted},
		},
		result: &types.PipelineResult{RunID: "run-4", Success: true, LeadID: "42", Scorecard: testScorecard(),
			CRM: types.CRMOutcome{Attempted: true, Updated: true}},
	}
	s := newTestServer(Options{Pipeline: runner})

	w := do(t, s, http.MethodPost, "/join/stream", `{"meetingUrl":"https://meet.google.com/x","leadId":"42"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := readEvents(t, w.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, EventProgress, events[0][0])
	assert.Equal(t, EventProgress, events[1][0])
	assert.Equal(t, EventResult, events[2][0])
	assert.Equal(t, EventComplete, events[3][0])
	assert.Contains(t, events[3][1], types.RunStatusSucceeded)

	var result types.JoinResponse
	require.NoError(t, json.Unmarshal([]byte(events[2][1]), &result))
	assert.True(t, result.OK)
}

func TestJoinStream_FailureAndValidation(t *testing.T) {
	runner := &fakeRunner{result: &types.PipelineResult{RunID: "run-5", FailedStage: "launching", Error: "chromium not found"}}
	s := newTestServer(Options{Pipeline: runner})

	w := do(t, s, http.MethodPost, "/join/stream", `{"meetingUrl":"https://meet.google.com/x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, runner.requests)

	w = do(t, s, http.MethodPost, "/join/stream", `{"meetingUrl":"https://meet.google.com/x","leadId":"42"}`)
	require.Equal(t, http.StatusOK, w.Code)
	events := readEvents(t, w.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, EventError, events[0][0])
	assert.Contains(t, events[0][1], "chromium not found")
	assert.Contains(t, events[1][1], types.RunStatusFailed)
}

func TestGetRunEndpoint(t *testing.T) {
	id := uuid.New()
	runs := &fakeRuns{detail: &db.RunDetail{
		Run:        db.Run{ID: id, LeadID: "42", Status: types.RunStatusSucceeded, CreatedAt: time.Now()},
		Transcript: "hello",
	}}
	s := newTestServer(Options{Runs: runs})

	w := do(t, s, http.MethodGet, "/runs/"+id.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"transcript":"hello"`)

	w = do(t, s, http.MethodGet, "/runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	runs.err = fmt.Errorf("connection refused")
	w = do(t, s, http.MethodGet, "/runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetRunEndpoint_NoHistory(t *testing.T) {
	s := newTestServer(Options{})

	w := do(t, s, http.MethodGet, "/runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuth_ProtectsRoutesWhenConfigured(t *testing.T) {
	jwtService := NewJWTService(&config.JWTConfig{Secret: testJWTSecret, ExpirationHours: 1})
	s := newTestServer(Options{JWT: jwtService})

	w := do(t, s, http.MethodPost, "/analyze", `{"transcript":"some text"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodPost, "/join", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code, "health stays public")

	token, err := jwtService.GenerateToken("telegram-bot")
	require.NoError(t, err)
	w = do(t, s, http.MethodPost, "/analyze", `{"transcript":"some text"}`, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(Options{})

	w := do(t, s, http.MethodOptions, "/join", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(Options{
		Pipeline: &fakeRunner{err: pipeline.ErrRunInProgress},
		RateLimit: &ratelimit.Config{
			Enabled:         true,
			DefaultLimit:    100,
			DefaultWindow:   time.Minute,
			EndpointConfigs: ratelimit.DefaultEndpointConfigs(),
		},
	})

	body := `{"meetingUrl":"https://meet.google.com/x","leadId":"42"}`
	for i := 0; i < 2; i++ {
		w := do(t, s, http.MethodPost, "/join", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	}

	w := do(t, s, http.MethodPost, "/join", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")

	w = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(Options{Port: 0})
	s.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStatusRecorder_Flush(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w}

	var _ http.Flusher = rec
	rec.Flush()
	assert.True(t, w.Flushed)
}

func TestCaller_AnonymousWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/join", nil)
	assert.Equal(t, "anonymous", caller(req))
}
