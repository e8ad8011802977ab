package pipeline

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a run is requested while another one holds the
// browser profile and audio device.
var ErrRunInProgress = errors.New("a meeting run is already in progress")

// StageError wraps the failure that aborted a run
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TeardownWarning records a resource that could not be released cleanly.
// It never fails a run.
type TeardownWarning struct {
	Resource string
	Err      error
}

func (w TeardownWarning) Error() string {
	return fmt.Sprintf("teardown of %s: %v", w.Resource, w.Err)
}

func (w TeardownWarning) Unwrap() error {
	return w.Err
}
