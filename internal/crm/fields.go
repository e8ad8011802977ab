package crm

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/meeting-analyzer/internal/types"
)

// FieldComments is the Bitrix lead field that receives the summary.
const FieldComments = "COMMENTS"

// LeadFields builds the lead fields written after a successful analysis.
func LeadFields(sc *types.Scorecard, at time.Time) map[string]string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Meeting analysis from %s\n\n", at.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&sb, "Overall score: %d/100\n", sc.OverallScore)
	fmt.Fprintf(&sb, "Client category: %s\n", sc.Category)
	if summary := strings.TrimSpace(sc.Summary); summary != "" {
		fmt.Fprintf(&sb, "\n%s\n", summary)
	}
	sb.WriteString("\nThe detailed report is available in the app.")

	return map[string]string{FieldComments: sb.String()}
}
