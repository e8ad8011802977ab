// Package schemas checks the structure of model output against embedded JSON Schemas.
package schemas

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed scorecard.schema.json
var scorecardSchema string

// maxReportedErrors bounds the issues listed for one document.
const maxReportedErrors = 10

var compiledScorecard = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(scorecardSchema))
})

// ScorecardSchema returns the embedded scorecard JSON Schema.
func ScorecardSchema() string {
	return scorecardSchema
}

// FieldError is one schema violation at a dotted field path.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists the violations of a document, sorted by field.
type ValidationError struct {
	Errors []FieldError
	// Omitted counts violations beyond the listed ones.
	Omitted int
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, err.Field, err.Message)
	}
	if ve.Omitted > 0 {
		fmt.Fprintf(&sb, "  ... and %d more\n", ve.Omitted)
	}
	return sb.String()
}

// Summary returns the validation errors on a single line.
func (ve *ValidationError) Summary() string {
	parts := make([]string, 0, len(ve.Errors))
	for _, err := range ve.Errors {
		parts = append(parts, err.Field+": "+err.Message)
	}
	return strings.Join(parts, "; ")
}

// DocumentError means the input could not be read as JSON at all.
type DocumentError struct {
	Cause error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document is not valid JSON: %v", e.Cause)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// ValidateScorecard checks the structure of a scorecard JSON document.
// Score bounds are not checked here.
func ValidateScorecard(jsonContent string) error {
	schema, err := compiledScorecard()
	if err != nil {
		return fmt.Errorf("scorecard schema does not compile: %w", err)
	}
	return validate(schema, jsonContent)
}

func validate(schema *gojsonschema.Schema, jsonContent string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		return &DocumentError{Cause: err}
	}
	if result.Valid() {
		return nil
	}

	all := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		all = append(all, FieldError{Field: field, Message: desc.Description()})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Field != all[j].Field {
			return all[i].Field < all[j].Field
		}
		return all[i].Message < all[j].Message
	})

	ve := &ValidationError{Errors: all}
	if len(all) > maxReportedErrors {
		ve.Errors, ve.Omitted = all[:maxReportedErrors], len(all)-maxReportedErrors
	}
	return ve
}
