package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jonathan/meeting-analyzer/internal/analysis"
	"github.com/jonathan/meeting-analyzer/internal/pipeline"
	"github.com/jonathan/meeting-analyzer/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &ErrValidation{Field: "transcript", Message: "is required"}, http.StatusBadRequest},
		{"field error", &types.FieldError{Field: "leadId", Tag: "required"}, http.StatusBadRequest},
		{"wrapped field error", fmt.Errorf("request: %w", &types.FieldError{Field: "meetingUrl", Tag: "url"}), http.StatusBadRequest},
		{"not found", &ErrNotFound{Resource: "run", ID: "x"}, http.StatusNotFound},
		{"busy", pipeline.ErrRunInProgress, http.StatusConflict},
		{"analysis", &analysis.AnalysisError{Kind: analysis.KindBackend, Message: "boom"}, http.StatusInternalServerError},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "transcript: is required", (&ErrValidation{Field: "transcript", Message: "is required"}).Error())
	assert.Equal(t, "invalid JSON body", (&ErrValidation{Message: "invalid JSON body"}).Error())
	assert.Equal(t, "run not found: abc", (&ErrNotFound{Resource: "run", ID: "abc"}).Error())
	assert.Equal(t, "run history not found", (&ErrNotFound{Resource: "run history"}).Error())
}
