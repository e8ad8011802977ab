// Package pipeline runs a meeting from browser launch to CRM update and guarantees
// the browser, page and recorder are released on every path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/meeting-analyzer/internal/browser"
	"github.com/jonathan/meeting-analyzer/internal/crm"
	"github.com/jonathan/meeting-analyzer/internal/recording"
	"github.com/jonathan/meeting-analyzer/internal/types"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step    string `json:"step"`
	State   string `json:"state"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Content any    `json:"content,omitempty"`
}

// Progress states carried in ProgressEvent.State.
const (
	ProgressStarted   = "started"
	ProgressCompleted = "completed"
	ProgressWarning   = "warning"
	ProgressFailed    = "failed"
)

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Launcher opens the meeting and decides when it is over.
type Launcher interface {
	Launch(ctx context.Context, url string) (browser.Page, browser.Browser, error)
	AwaitEnd(ctx context.Context, page browser.Page) (browser.WaitOutcome, error)
}

// Recorder starts audio captures.
type Recorder interface {
	Start(ctx context.Context, runID string) (Recording, error)
}

// Transcriber converts a recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, artifact *types.RecordingArtifact) (types.Transcript, error)
}

// Analyzer scores a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (*types.Scorecard, error)
}

// RunStore keeps an audit trail of runs. All methods are best effort.
type RunStore interface {
	CreateRun(ctx context.Context, runID uuid.UUID, req types.MeetingRequest) error
	SaveArtifact(ctx context.Context, runID uuid.UUID, step, name string, content any) error
	CompleteRun(ctx context.Context, runID uuid.UUID, result *types.PipelineResult) error
}

// RecorderFrom adapts a recording.Controller to Recorder.
func RecorderFrom(c *recording.Controller) Recorder {
	return controllerRecorder{c}
}

type controllerRecorder struct {
	c *recording.Controller
}

func (r controllerRecorder) Start(ctx context.Context, runID string) (Recording, error) {
	h, err := r.c.Start(ctx, runID)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Options configures an Orchestrator.
type Options struct {
	Launcher    Launcher
	Recorder    Recorder
	Transcriber Transcriber
	Analyzer    Analyzer
	CRM         crm.Updater
	// Store is optional.
	Store RunStore
	// RunTimeout bounds a whole run; zero means no limit beyond the caller's context.
	RunTimeout      time.Duration
	TeardownTimeout time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

// Orchestrator executes pipeline runs one at a time.
type Orchestrator struct {
	opts   Options
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		opts:   opts,
		sem:    semaphore.NewWeighted(1),
		logger: opts.Logger,
	}
}

// Busy reports whether a run currently holds the orchestrator.
func (o *Orchestrator) Busy() bool {
	if o.sem.TryAcquire(1) {
		o.sem.Release(1)
		return false
	}
	return true
}

// Run executes one meeting end to end.
// The returned error is non-nil only when the run was not started: an invalid request
// or ErrRunInProgress. Stage failures are reported in the result.
func (o *Orchestrator) Run(ctx context.Context, req types.MeetingRequest, onProgress ProgressCallback) (*types.PipelineResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !o.sem.TryAcquire(1) {
		return nil, ErrRunInProgress
	}
	defer o.sem.Release(1)

	if o.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
		defer cancel()
	}

	id := uuid.New()
	r := &run{
		o:       o,
		id:      id,
		req:     req,
		state:   StateIdle,
		session: NewSession(o.opts.TeardownTimeout, o.logger),
		logger:  o.logger.With("run_id", id.String(), "lead_id", req.LeadID),
		notify:  onProgress,
		result: &types.PipelineResult{
			RunID:      id.String(),
			MeetingURL: req.MeetingURL,
			LeadID:     req.LeadID,
		},
	}

	r.logger.Info("run started", "meeting_url", req.MeetingURL)
	o.storeCall(r, "create run", func(s RunStore) error { return s.CreateRun(ctx, id, req) })

	defer r.finish(ctx)
	r.execute(ctx)
	return r.result, nil
}

func (o *Orchestrator) storeCall(r *run, what string, fn func(RunStore) error) {
	if o.opts.Store == nil {
		return
	}
	if err := fn(o.opts.Store); err != nil {
		r.logger.Warn("run store "+what+" failed", "error", err)
	}
}

// run is the state of one execution.
type run struct {
	o       *Orchestrator
	id      uuid.UUID
	req     types.MeetingRequest
	state   State
	session *Session
	result  *types.PipelineResult
	logger  *slog.Logger
	notify  ProgressCallback
	started time.Time
}

func (r *run) emit(step State, state, message string, content any) {
	if r.notify == nil {
		return
	}
	r.notify(ProgressEvent{
		Step:    string(step),
		State:   state,
		Message: message,
		RunID:   r.id.String(),
		Content: content,
	})
}

func (r *run) enter(next State) {
	if !CanAdvance(r.state, next) {
		r.logger.Error("invalid state transition", "from", r.state, "to", next)
	}
	r.state = next
	r.started = time.Now()
	r.logger.Info("stage started", "stage", next)
	r.emit(next, ProgressStarted, next.Description(), nil)
}

func (r *run) complete(content any) {
	r.logger.Info("stage completed", "stage", r.state, "took", time.Since(r.started).Round(time.Millisecond))
	r.emit(r.state, ProgressCompleted, r.state.Description(), content)
}

func (r *run) warn(msg string) {
	r.result.Warnings = append(r.result.Warnings, msg)
	r.emit(r.state, ProgressWarning, msg, nil)
}

func (r *run) fail(err error) {
	stageErr := &StageError{Stage: r.state, Err: err}
	r.logger.Error("stage failed", "stage", r.state, "error", err)
	r.result.Success = false
	r.result.FailedStage = string(r.state)
	r.result.Error = err.Error()
	r.result.Err = stageErr
	r.result.Scorecard = nil
	r.emit(r.state, ProgressFailed, err.Error(), nil)
}

func (r *run) teardown(ctx context.Context) {
	if rec, page, b := r.session.Held(); !rec && !page && !b {
		return
	}
	prev := r.state
	r.state = StateTearingDown
	for _, w := range r.session.Teardown(ctx) {
		r.warn(w.Error())
	}
	r.state = prev
}

func (r *run) execute(ctx context.Context) {
	opts := r.o.opts

	r.enter(StateLaunching)
	page, b, err := opts.Launcher.Launch(ctx, r.req.MeetingURL)
	r.session.Attach(page, b)
	if err != nil {
		r.fail(err)
		return
	}
	r.complete(nil)

	r.enter(StateRecording)
	rec, err := opts.Recorder.Start(ctx, r.id.String())
	if err != nil {
		r.fail(err)
		return
	}
	r.session.AttachRecording(rec)

	outcome, waitErr := opts.Launcher.AwaitEnd(ctx, page)
	if waitErr == nil && outcome.TimedOut {
		r.warn(fmt.Sprintf("no end signal within %s, recording stopped at ceiling", outcome.Elapsed.Round(time.Second)))
	}

	artifact, stopErr := r.session.StopRecording(ctx)
	r.teardown(ctx)
	if waitErr != nil {
		r.fail(fmt.Errorf("waiting for meeting end: %w", waitErr))
		return
	}
	if stopErr != nil {
		r.fail(stopErr)
		return
	}
	r.complete(map[string]any{
		"duration_seconds": int(artifact.Duration.Seconds()),
		"end_signal":       outcome.EndSignal,
	})

	r.enter(StateTranscribing)
	transcript, err := opts.Transcriber.Transcribe(ctx, artifact)
	if err != nil {
		r.fail(err)
		return
	}
	r.result.TranscriptChars = transcript.Len()
	r.o.storeCall(r, "save transcript", func(s RunStore) error {
		return s.SaveArtifact(ctx, r.id, string(StateTranscribing), "transcript", transcript.Text)
	})
	r.complete(map[string]any{"chars": transcript.Len()})

	r.enter(StateAnalyzing)
	scorecard, err := opts.Analyzer.Analyze(ctx, transcript.Text)
	if err != nil {
		r.fail(err)
		return
	}
	r.result.Scorecard = scorecard
	r.o.storeCall(r, "save scorecard", func(s RunStore) error {
		return s.SaveArtifact(ctx, r.id, string(StateAnalyzing), "scorecard", scorecard)
	})
	r.complete(map[string]any{"overall_score": scorecard.OverallScore, "category": scorecard.Category})

	// From here on the run is a success; a CRM failure only downgrades it to partial
	r.result.Success = true

	r.enter(StateUpdatingCRM)
	r.result.CRM.Attempted = true
	fields := crm.LeadFields(scorecard, r.o.opts.Now())
	if _, err := opts.CRM.Update(ctx, r.req.LeadID, fields); err != nil {
		r.result.CRM.Error = err.Error()
		r.logger.Warn("crm update failed, returning partial result", "error", err)
		r.warn("crm update failed: " + err.Error())
	} else {
		r.result.CRM.Updated = true
		r.complete(nil)
	}

	r.enter(StateDone)
}

func (r *run) finish(ctx context.Context) {
	r.teardown(ctx)

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	r.o.storeCall(r, "complete run", func(s RunStore) error { return s.CompleteRun(storeCtx, r.id, r.result) })

	r.logger.Info("run finished",
		"status", r.result.Status(),
		"stage", r.result.FailedStage,
		"transcript_chars", r.result.TranscriptChars,
		"warnings", len(r.result.Warnings),
	)
}
