package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FindEndMarker searches the visible body text of html for any marker.
// Matching ignores case and collapses whitespace runs.
func FindEndMarker(html string, markers []string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	doc.Find("script, style, noscript, template").Remove()
	text := normalizeText(doc.Find("body").Text())
	if text == "" {
		return "", false
	}

	for _, marker := range markers {
		needle := normalizeText(marker)
		if needle != "" && strings.Contains(text, needle) {
			return marker, true
		}
	}
	return "", false
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
