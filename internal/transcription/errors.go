package transcription

import "fmt"

// TranscriptionError is returned for every failed or empty transcription
type TranscriptionError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *TranscriptionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transcription via %s failed: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("transcription via %s failed: %s", e.Provider, e.Message)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Cause
}

// APIError is a non-2xx response from a transcription service
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP status %d: %s", e.StatusCode, e.Body)
}
