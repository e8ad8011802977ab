// Package observability provides structured logging setup and formatted output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/meeting-analyzer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxWarningsToShow caps the warnings listed in a result box
	maxWarningsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintScorecard outputs the overall score, category and every rubric point.
func (p *Printer) PrintScorecard(sc *types.Scorecard) {
	if sc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Overall:  %d/100\n", sc.OverallScore))
	sb.WriteString(fmt.Sprintf("Category: %s\n", sc.Category))
	sb.WriteString("\n")

	for _, i := range sc.SortedIndexes() {
		point := sc.Points[i]
		sb.WriteString(fmt.Sprintf("%2d. %-40s %2d/10\n", i, truncate(point.Title, 40), point.Score))
	}

	if sc.Summary != "" {
		sb.WriteString("\n")
		sb.WriteString(truncate(sc.Summary, 2*(boxWidth-4)))
	}

	p.printBox("MEETING SCORECARD", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintResult outputs the outcome of a pipeline run.
func (p *Printer) PrintResult(res *types.PipelineResult) {
	if res == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", res.RunID))
	sb.WriteString(fmt.Sprintf("Lead:     %s\n", res.LeadID))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", res.Status()))

	if !res.Success {
		sb.WriteString(fmt.Sprintf("Stage:    %s\n", res.FailedStage))
		sb.WriteString(fmt.Sprintf("Error:    %s\n", res.Error))
	} else {
		sb.WriteString(fmt.Sprintf("Transcript: %d chars\n", res.TranscriptChars))
		switch {
		case res.CRM.Updated:
			sb.WriteString("CRM:      ✓ updated\n")
		case res.CRM.Attempted:
			sb.WriteString(fmt.Sprintf("CRM:      ✗ %s\n", res.CRM.Error))
		}
	}

	if len(res.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		count := min(len(res.Warnings), maxWarningsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", res.Warnings[i]))
		}
		if len(res.Warnings) > maxWarningsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(res.Warnings)-maxWarningsToShow))
		}
	}

	p.printBox("PIPELINE RESULT", strings.TrimSuffix(sb.String(), "\n"))
	p.PrintScorecard(res.Scorecard)
}
