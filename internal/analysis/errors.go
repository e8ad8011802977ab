package analysis

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an analysis failed.
type ErrorKind string

// Analysis failure kinds.
const (
	// KindInput means the transcript was empty.
	KindInput ErrorKind = "input"
	// KindBackend means the model call itself failed.
	KindBackend ErrorKind = "backend"
	// KindMalformed means the model answered with something that is not a scorecard.
	KindMalformed ErrorKind = "malformed"
	// KindValidation means the scorecard parsed but a score is out of bounds.
	KindValidation ErrorKind = "validation"
)

// AnalysisError is returned for every failed analysis.
type AnalysisError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("analysis %s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("analysis %s error: %s", e.Kind, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is an AnalysisError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *AnalysisError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == kind
}
