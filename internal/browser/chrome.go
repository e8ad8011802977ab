package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeConfig configures the Chromium process.
type ChromeConfig struct {
	ExecPath        string
	Headless        bool
	UserDataDir     string
	NavigateTimeout time.Duration
}

// ChromeBackend starts Chromium through the DevTools protocol.
type ChromeBackend struct {
	cfg ChromeConfig
}

// NewChromeBackend creates a ChromeBackend.
func NewChromeBackend(cfg ChromeConfig) *ChromeBackend {
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = 60 * time.Second
	}
	return &ChromeBackend{cfg: cfg}
}

// Start launches Chromium with media permissions granted automatically.
// The process outlives ctx and must be released with Close.
func (c *ChromeBackend) Start(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("use-fake-ui-for-media-stream", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Flag("mute-audio", false),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	if c.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(c.cfg.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := allocate(ctx, browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chromium: %w", err)
	}

	return &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		timeout:     c.cfg.NavigateTimeout,
	}, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
}

func (b *chromeBrowser) NewPage(ctx context.Context, url string) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)

	// Allocate the tab before navigating so a navigation timeout does not close it
	if err := allocate(ctx, tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	p := &chromePage{ctx: tabCtx, cancel: tabCancel}
	if err := run(ctx, tabCtx, b.timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	); err != nil {
		return p, fmt.Errorf("navigation failed: %w", err)
	}
	return p, nil
}

func (b *chromeBrowser) Close(_ context.Context) error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	return err
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := run(ctx, p.ctx, 15*time.Second, chromedp.OuterHTML("html", &html)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) Close(_ context.Context) error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}

// allocate performs the first Run on target, which creates the browser or tab.
// The first Run must use target itself: cancelling it would close what it created.
func allocate(ctx, target context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(target)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes actions on target, bounded by timeout and by the caller's ctx.
func run(ctx, target context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(target, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}
