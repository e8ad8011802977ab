// Package recording captures meeting audio with ffmpeg.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/jonathan/meeting-analyzer/internal/types"
)

// Defaults for Config.
const (
	DefaultFFmpegPath  = "ffmpeg"
	DefaultSource      = "default"
	DefaultDir         = "recordings"
	DefaultSampleRate  = 16000
	DefaultStopTimeout = 10 * time.Second
	DefaultStartGrace  = 500 * time.Millisecond
)

// Config configures the capture process.
type Config struct {
	FFmpegPath string
	// Source is the PulseAudio source to capture.
	Source     string
	Dir        string
	SampleRate int
	// StopTimeout is how long Stop waits for ffmpeg to finalize before killing it.
	StopTimeout time.Duration
	// StartGrace is how long Start watches for ffmpeg exiting immediately.
	StartGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.FFmpegPath == "" {
		c.FFmpegPath = DefaultFFmpegPath
	}
	if c.Source == "" {
		c.Source = DefaultSource
	}
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.StartGrace <= 0 {
		c.StartGrace = DefaultStartGrace
	}
	return c
}

// process is the running capture command.
type process interface {
	Signal(sig os.Signal) error
	Kill() error
	Wait() error
}

type spawnFunc func(cfg Config, outputPath string) (process, error)

// Controller starts and stops recordings.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	spawn  spawnFunc
}

// NewController creates a Controller.
func NewController(cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{cfg: cfg.withDefaults(), logger: logger, spawn: spawnFFmpeg}
}

// Start begins capturing into a new WAV file named after runID.
func (c *Controller) Start(ctx context.Context, runID string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RecordingStartError{Message: "context done before start", Cause: err}
	}
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return nil, &RecordingStartError{Message: "failed to create recording directory", Cause: err}
	}

	name := fmt.Sprintf("%s_%s.wav", time.Now().UTC().Format("20060102T150405Z"), runID)
	outputPath := filepath.Join(c.cfg.Dir, name)

	proc, err := c.spawn(c.cfg, outputPath)
	if err != nil {
		return nil, &RecordingStartError{Message: "failed to spawn ffmpeg", Cause: err}
	}

	h := &Handle{
		path:        outputPath,
		started:     time.Now(),
		proc:        proc,
		stopTimeout: c.cfg.StopTimeout,
		logger:      c.logger,
		exited:      make(chan struct{}),
	}
	go func() {
		h.waitErr = proc.Wait()
		close(h.exited)
	}()

	// ffmpeg exits right away when the source does not exist
	select {
	case <-h.exited:
		return nil, &RecordingStartError{
			Message: fmt.Sprintf("ffmpeg exited during startup (see %s.ffmpeg.log)", outputPath),
			Cause:   h.waitErr,
		}
	case <-time.After(c.cfg.StartGrace):
	}

	c.logger.Info("recording started", "path", outputPath, "source", c.cfg.Source)
	return h, nil
}

// Stop finalizes the recording held by h.
func (c *Controller) Stop(ctx context.Context, h *Handle) (*types.RecordingArtifact, error) {
	return h.Stop(ctx)
}

// Handle is a running recording. Stop may be called any number of times.
type Handle struct {
	path        string
	started     time.Time
	proc        process
	stopTimeout time.Duration
	logger      *slog.Logger

	exited  chan struct{}
	waitErr error

	once     sync.Once
	artifact *types.RecordingArtifact
	err      error
}

// Path returns the output file path.
func (h *Handle) Path() string {
	return h.path
}

// Stop ends the capture and returns the artifact. Later calls return the first result.
func (h *Handle) Stop(ctx context.Context) (*types.RecordingArtifact, error) {
	h.once.Do(func() {
		h.artifact, h.err = h.stop(ctx)
	})
	return h.artifact, h.err
}

func (h *Handle) stop(ctx context.Context) (*types.RecordingArtifact, error) {
	select {
	case <-h.exited:
		h.logger.Warn("recorder exited before stop", "path", h.path, "error", h.waitErr)
	default:
		if err := h.proc.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.logger.Warn("failed to signal recorder", "error", err)
		}

		timer := time.NewTimer(h.stopTimeout)
		defer timer.Stop()

		select {
		case <-h.exited:
		case <-timer.C:
			h.logger.Warn("recorder did not stop in time, killing", "timeout", h.stopTimeout)
			_ = h.proc.Kill()
			<-h.exited
		case <-ctx.Done():
			_ = h.proc.Kill()
			<-h.exited
		}
	}

	artifact, err := InspectArtifact(h.path)
	if err != nil {
		return nil, err
	}

	h.logger.Info("recording saved",
		"path", artifact.Path,
		"duration", artifact.Duration.Round(time.Second),
		"bytes", artifact.SizeBytes,
		"wall_time", time.Since(h.started).Round(time.Second),
	)
	return artifact, nil
}

func spawnFFmpeg(cfg Config, outputPath string) (process, error) {
	bin, err := exec.LookPath(cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.Command(bin,
		"-hide_banner",
		"-f", "pulse",
		"-i", cfg.Source,
		"-ac", "1",
		"-ar", fmt.Sprint(cfg.SampleRate),
		"-y",
		outputPath,
	)

	// Log stderr for diagnostics
	logFile, err := os.Create(outputPath + ".ffmpeg.log")
	if err == nil {
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, err
	}

	return &ffmpegProcess{cmd: cmd, log: logFile}, nil
}

type ffmpegProcess struct {
	cmd *exec.Cmd
	log *os.File
}

func (p *ffmpegProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *ffmpegProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *ffmpegProcess) Wait() error {
	err := p.cmd.Wait()
	if p.log != nil {
		p.log.Close()
	}
	return err
}
