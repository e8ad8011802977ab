// Package browser opens meeting pages in a controlled browser and waits for calls to end.
package browser

import (
	"context"
	"log/slog"
	"time"
)

// Browser is a running browser process.
type Browser interface {
	// NewPage opens a tab and navigates it to url.
	NewPage(ctx context.Context, url string) (Page, error)
	Close(ctx context.Context) error
}

// Page is an open meeting tab.
type Page interface {
	// HTML returns the current rendered document.
	HTML(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Backend starts browsers.
type Backend interface {
	Start(ctx context.Context) (Browser, error)
}

// Default values for the unbounded wait policy.
const (
	DefaultEndSignalCeiling      = 60 * time.Minute
	DefaultEndSignalPollInterval = 5 * time.Second
)

// DefaultEndMarkers are the page texts that indicate the call is over.
var DefaultEndMarkers = []string{
	"Meeting ended",
	"You left the meeting",
	"The meeting has ended",
}

// WaitPolicy controls how long AwaitEnd keeps the meeting open.
type WaitPolicy struct {
	// MaxDuration > 0 selects the bounded policy: wait exactly this long.
	MaxDuration time.Duration
	// Ceiling bounds the end-signal wait when MaxDuration is zero.
	Ceiling time.Duration
	// PollInterval is how often the page is checked for an end marker.
	PollInterval time.Duration
	// EndMarkers are matched case-insensitively against the page text.
	EndMarkers []string
}

// Bounded reports whether the policy ignores the call state.
func (p WaitPolicy) Bounded() bool {
	return p.MaxDuration > 0
}

func (p WaitPolicy) withDefaults() WaitPolicy {
	if p.Ceiling <= 0 {
		p.Ceiling = DefaultEndSignalCeiling
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultEndSignalPollInterval
	}
	if len(p.EndMarkers) == 0 {
		p.EndMarkers = DefaultEndMarkers
	}
	return p
}

// WaitOutcome describes why AwaitEnd returned.
type WaitOutcome struct {
	Elapsed time.Duration
	// EndSignal is set when a marker was found; Marker holds the match.
	EndSignal bool
	Marker    string
	// TimedOut is set when the ceiling elapsed without an end signal.
	TimedOut bool
}

// Launcher opens meetings and waits for them to finish.
type Launcher struct {
	backend Backend
	policy  WaitPolicy
	logger  *slog.Logger
}

// NewLauncher creates a Launcher.
func NewLauncher(backend Backend, policy WaitPolicy, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{backend: backend, policy: policy.withDefaults(), logger: logger}
}

// Policy returns the effective wait policy.
func (l *Launcher) Policy() WaitPolicy {
	return l.policy
}

// Launch starts a browser and opens url in it.
// Whatever was acquired before a failure is returned with the error so the caller
// can release it: the browser when the tab could not be opened, and also the tab
// when it opened but navigation failed.
func (l *Launcher) Launch(ctx context.Context, url string) (Page, Browser, error) {
	l.logger.Info("launching browser", "url", url)

	b, err := l.backend.Start(ctx)
	if err != nil {
		return nil, nil, &LaunchError{URL: url, Message: "failed to start browser", Cause: err}
	}

	page, err := b.NewPage(ctx, url)
	if err != nil {
		return page, b, &LaunchError{URL: url, Message: "failed to open meeting page", Cause: err}
	}

	l.logger.Info("meeting page opened", "url", url)
	return page, b, nil
}

// AwaitEnd blocks until the meeting should stop being recorded.
// Only context cancellation produces an error.
func (l *Launcher) AwaitEnd(ctx context.Context, page Page) (WaitOutcome, error) {
	start := time.Now()
	if l.policy.Bounded() {
		return l.awaitDuration(ctx, start)
	}
	return l.awaitSignal(ctx, page, start)
}

func (l *Launcher) awaitDuration(ctx context.Context, start time.Time) (WaitOutcome, error) {
	l.logger.Info("recording for fixed duration", "duration", l.policy.MaxDuration)

	timer := time.NewTimer(l.policy.MaxDuration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return WaitOutcome{Elapsed: time.Since(start)}, ctx.Err()
	case <-timer.C:
		return WaitOutcome{Elapsed: time.Since(start)}, nil
	}
}

func (l *Launcher) awaitSignal(ctx context.Context, page Page, start time.Time) (WaitOutcome, error) {
	l.logger.Info("waiting for meeting end signal", "ceiling", l.policy.Ceiling, "poll_interval", l.policy.PollInterval)

	ceiling := time.NewTimer(l.policy.Ceiling)
	defer ceiling.Stop()
	ticker := time.NewTicker(l.policy.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return WaitOutcome{Elapsed: time.Since(start)}, ctx.Err()
		case <-ceiling.C:
			elapsed := time.Since(start)
			l.logger.Warn("no end marker found, stopping at ceiling", "elapsed", elapsed.Round(time.Second))
			return WaitOutcome{Elapsed: elapsed, TimedOut: true}, nil
		case <-ticker.C:
			html, err := page.HTML(ctx)
			if err != nil {
				// The page may be mid-navigation; try again on the next tick
				l.logger.Debug("end signal poll failed", "error", err)
				continue
			}
			if marker, ok := FindEndMarker(html, l.policy.EndMarkers); ok {
				elapsed := time.Since(start)
				l.logger.Info("meeting end signal detected", "marker", marker, "elapsed", elapsed.Round(time.Second))
				return WaitOutcome{Elapsed: elapsed, EndSignal: true, Marker: marker}, nil
			}
		}
	}
}
