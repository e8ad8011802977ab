package analysis

import (
	"fmt"
	"strings"
)

// Criterion is one entry of the sales call rubric.
type Criterion struct {
	Index int
	Title string
}

// Rubric is the fixed 12-point checklist every call is scored against.
var Rubric = [...]Criterion{
	{1, "Business discovery"},
	{2, "Pain point elicitation"},
	{3, "Objection handling"},
	{4, "Reaction to pricing model"},
	{5, "Interest in the service"},
	{6, "Decision-maker identification"},
	{7, "Budget qualification"},
	{8, "Timeline and urgency"},
	{9, "Value proposition"},
	{10, "Competitive landscape"},
	{11, "Next steps agreed"},
	{12, "Rapport and communication"},
}

// Title returns the rubric title for index, or "" when index is outside the rubric.
func Title(index int) string {
	if index < 1 || index > len(Rubric) {
		return ""
	}
	return Rubric[index-1].Title
}

// RubricText renders the rubric as a numbered list for prompts.
func RubricText() string {
	var sb strings.Builder
	for _, c := range Rubric {
		fmt.Fprintf(&sb, "%d. %s\n", c.Index, c.Title)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
