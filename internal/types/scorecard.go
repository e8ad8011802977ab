package types

import (
	"sort"
	"strings"
)

// CriteriaCount is the fixed number of rubric entries in every scorecard.
const CriteriaCount = 12

// Client categories assigned by the analysis.
const (
	CategoryHot  = "hot"
	CategoryWarm = "warm"
	CategoryCold = "cold"
)

// CriterionScore is the evaluation of a single rubric entry.
type CriterionScore struct {
	Title string `json:"title,omitempty"`
	Score int    `json:"score" validate:"min=0,max=10"`
	Notes string `json:"notes"`
}

// Scorecard is the structured evaluation of a sales call.
type Scorecard struct {
	OverallScore int                    `json:"overallScore" validate:"min=0,max=100"`
	Category     string                 `json:"category" validate:"required,oneof=hot warm cold"`
	Points       map[int]CriterionScore `json:"points" validate:"len=12,dive,keys,min=1,max=12,endkeys"`
	Summary      string                 `json:"summary"`
}

// Validate checks every score against its declared bounds.
// Out-of-range values are reported, never clamped.
func (s *Scorecard) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fields, ok := toFieldErrors(err)
	if !ok {
		return err
	}
	return &ScorecardError{Fields: fields}
}

// ScorecardError lists every out-of-bounds field of a scorecard.
type ScorecardError struct {
	Fields []FieldError
}

func (e *ScorecardError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for i := range e.Fields {
		msgs = append(msgs, e.Fields[i].Error())
	}
	return "scorecard out of bounds: " + strings.Join(msgs, "; ")
}

// SortedIndexes returns the criterion indexes in ascending order.
func (s *Scorecard) SortedIndexes() []int {
	idx := make([]int, 0, len(s.Points))
	for i := range s.Points {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
