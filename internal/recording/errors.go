package recording

import "fmt"

// RecordingStartError represents a failure to spawn the capture process
type RecordingStartError struct {
	Message string
	Cause   error
}

func (e *RecordingStartError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("recording start failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("recording start failed: %s", e.Message)
}

func (e *RecordingStartError) Unwrap() error {
	return e.Cause
}

// RecordingEmptyError means the capture finished without usable audio
type RecordingEmptyError struct {
	Path    string
	Message string
	Cause   error
}

func (e *RecordingEmptyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("recording %s is empty: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("recording %s is empty: %s", e.Path, e.Message)
}

func (e *RecordingEmptyError) Unwrap() error {
	return e.Cause
}
