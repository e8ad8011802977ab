package browser

import "fmt"

// LaunchError represents a failure to start the browser or open the meeting page
type LaunchError struct {
	URL     string
	Message string
	Cause   error
}

func (e *LaunchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("launch failed for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("launch failed for %s: %s", e.URL, e.Message)
}

func (e *LaunchError) Unwrap() error {
	return e.Cause
}
