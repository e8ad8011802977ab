package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonathan/meeting-analyzer/internal/browser"
	"github.com/jonathan/meeting-analyzer/internal/types"
)

// DefaultTeardownTimeout bounds how long releasing resources may take.
const DefaultTeardownTimeout = 30 * time.Second

// Recording is a capture in progress.
type Recording interface {
	Stop(ctx context.Context) (*types.RecordingArtifact, error)
}

// Session holds the resources acquired by one run. Every resource it holds is
// released exactly once, by StopRecording or Teardown, and then forgotten.
type Session struct {
	mu        sync.Mutex
	browser   browser.Browser
	page      browser.Page
	recording Recording

	timeout time.Duration
	logger  *slog.Logger
}

// NewSession creates an empty session.
func NewSession(timeout time.Duration, logger *slog.Logger) *Session {
	if timeout <= 0 {
		timeout = DefaultTeardownTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{timeout: timeout, logger: logger}
}

// Attach records whichever of the launcher's handles are non-nil.
func (s *Session) Attach(page browser.Page, b browser.Browser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b != nil {
		s.browser = b
	}
	if page != nil {
		s.page = page
	}
}

// AttachRecording records a started capture.
func (s *Session) AttachRecording(r Recording) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = r
}

// StopRecording stops the held capture and releases it from the session.
func (s *Session) StopRecording(ctx context.Context) (*types.RecordingArtifact, error) {
	s.mu.Lock()
	rec := s.recording
	s.recording = nil
	s.mu.Unlock()

	if rec == nil {
		return nil, &recordingMissingError{}
	}
	return rec.Stop(ctx)
}

// Held reports which resources the session still holds.
func (s *Session) Held() (recording, page, browser bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording != nil, s.page != nil, s.browser != nil
}

// Teardown releases the recording, the page and the browser, in that order.
// It runs even when ctx is already cancelled and may be called repeatedly.
func (s *Session) Teardown(ctx context.Context) []TeardownWarning {
	s.mu.Lock()
	rec, page, b := s.recording, s.page, s.browser
	s.recording, s.page, s.browser = nil, nil, nil
	s.mu.Unlock()

	if rec == nil && page == nil && b == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var warnings []TeardownWarning
	release := func(resource string, fn func() error) {
		if err := fn(); err != nil {
			w := TeardownWarning{Resource: resource, Err: err}
			s.logger.Warn("teardown warning", "resource", resource, "error", err)
			warnings = append(warnings, w)
			return
		}
		s.logger.Debug("released", "resource", resource)
	}

	if rec != nil {
		release("recording", func() error {
			_, err := rec.Stop(ctx)
			return err
		})
	}
	if page != nil {
		release("page", func() error { return page.Close(ctx) })
	}
	if b != nil {
		release("browser", func() error { return b.Close(ctx) })
	}
	return warnings
}

type recordingMissingError struct{}

func (*recordingMissingError) Error() string {
	return "no recording in progress"
}
