package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/meeting-analyzer/internal/browser"
	"github.com/jonathan/meeting-analyzer/internal/crm"
	"github.com/jonathan/meeting-analyzer/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// releaseLog records release calls across fakes so ordering can be asserted.
type releaseLog struct {
	mu    sync.Mutex
	order []string
}

func (l *releaseLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, name)
}

func (l *releaseLog) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, o := range l.order {
		if o == name {
			n++
		}
	}
	return n
}

func (l *releaseLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

type fakePage struct {
	log      *releaseLog
	closeErr error
}

func (p *fakePage) HTML(context.Context) (string, error) { return "", nil }

func (p *fakePage) Close(context.Context) error {
	p.log.add("page")
	return p.closeErr
}

type fakeBrowser struct {
	log *releaseLog
}

func (b *fakeBrowser) NewPage(context.Context, string) (browser.Page, error) { return nil, nil }

func (b *fakeBrowser) Close(context.Context) error {
	b.log.add("browser")
	return nil
}

type fakeLauncher struct {
	log          *releaseLog
	launchErr    error
	keepBrowser  bool
	keepPage     bool
	awaitErr     error
	awaitOutcome browser.WaitOutcome
	// block makes AwaitEnd wait for release or ctx cancellation
	block   chan struct{}
	entered chan struct{}

	mu       sync.Mutex
	launches int
	pageErr  error
}

func (l *fakeLauncher) Launch(context.Context, string) (browser.Page, browser.Browser, error) {
	l.mu.Lock()
	l.launches++
	l.mu.Unlock()

	if l.launchErr != nil {
		if l.keepPage {
			return &fakePage{log: l.log}, &fakeBrowser{log: l.log}, l.launchErr
		}
		if l.keepBrowser {
			return nil, &fakeBrowser{log: l.log}, l.launchErr
		}
		return nil, nil, l.launchErr
	}
	return &fakePage{log: l.log, closeErr: l.pageErr}, &fakeBrowser{log: l.log}, nil
}

func (l *fakeLauncher) AwaitEnd(ctx context.Context, _ browser.Page) (browser.WaitOutcome, error) {
	if l.entered != nil {
		close(l.entered)
	}
	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
			return browser.WaitOutcome{}, ctx.Err()
		}
	}
	return l.awaitOutcome, l.awaitErr
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

type fakeRecording struct {
	log      *releaseLog
	artifact *types.RecordingArtifact
	err      error
}

func (r *fakeRecording) Stop(context.Context) (*types.RecordingArtifact, error) {
	r.log.add("recording")
	return r.artifact, r.err
}

type fakeRecorder struct {
	log      *releaseLog
	startErr error
	stopErr  error
}

func (r *fakeRecorder) Start(context.Context, string) (Recording, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	return &fakeRecording{
		log:      r.log,
		artifact: &types.RecordingArtifact{Path: "/tmp/x.wav", Duration: 90 * time.Second, SizeBytes: 1000},
		err:      r.stopErr,
	}, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, *types.RecordingArtifact) (types.Transcript, error) {
	f.calls++
	return types.Transcript{Text: f.text}, f.err
}

type fakeAnalyzer struct {
	err   error
	calls int
}

func testScorecard() *types.Scorecard {
	points := map[int]types.CriterionScore{}
	for i := 1; i <= types.CriteriaCount; i++ {
		points[i] = types.CriterionScore{Score: 6, Notes: "ok"}
	}
	return &types.Scorecard{OverallScore: 64, Category: types.CategoryWarm, Points: points, Summary: "Decent call."}
}

func (f *fakeAnalyzer) Analyze(context.Context, string) (*types.Scorecard, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return testScorecard(), nil
}

type fakeCRM struct {
	err    error
	calls  int
	lead   string
	fields map[string]string
}

func (f *fakeCRM) Update(_ context.Context, id string, fields map[string]string) (*crm.Ack, error) {
	f.calls++
	f.lead = id
	f.fields = fields
	if f.err != nil {
		return nil, f.err
	}
	return &crm.Ack{RecordID: id, Status: 200}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	created   []uuid.UUID
	artifacts []string
	completed *types.PipelineResult
	failAll   bool
}

func (s *fakeStore) CreateRun(_ context.Context, id uuid.UUID, _ types.MeetingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, id)
	if s.failAll {
		return errors.New("db down")
	}
	return nil
}

func (s *fakeStore) SaveArtifact(_ context.Context, _ uuid.UUID, _, name string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, name)
	if s.failAll {
		return errors.New("db down")
	}
	return nil
}

func (s *fakeStore) CompleteRun(_ context.Context, _ uuid.UUID, result *types.PipelineResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = result
	if s.failAll {
		return errors.New("db down")
	}
	return nil
}

type harness struct {
	log         *releaseLog
	launcher    *fakeLauncher
	recorder    *fakeRecorder
	transcriber *fakeTranscriber
	analyzer    *fakeAnalyzer
	crm         *fakeCRM
	store       *fakeStore
}

func newHarness() *harness {
	log := &releaseLog{}
	return &harness{
		log:         log,
		launcher:    &fakeLauncher{log: log, awaitOutcome: browser.WaitOutcome{EndSignal: true}},
		recorder:    &fakeRecorder{log: log},
		transcriber: &fakeTranscriber{text: "Hello, thank you for joining the call today."},
		analyzer:    &fakeAnalyzer{},
		crm:         &fakeCRM{},
		store:       &fakeStore{},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return New(Options{
		Launcher:    h.launcher,
		Recorder:    h.recorder,
		Transcriber: h.transcriber,
		Analyzer:    h.analyzer,
		CRM:         h.crm,
		Store:       h.store,
		Logger:      quietLogger(),
		Now:         func() time.Time { return time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC) },
	})
}

var validRequest = types.MeetingRequest{MeetingURL: "https://meet.example.com/abc-defg", LeadID: "42"}
