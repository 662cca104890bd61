package fetch

import (
	"html"
	"regexp"
	"strings"
)

// Section markers in document order. 1A/7A must be matched before their
// bare prefixes so "Item 1A" never registers as "Item 1".
var sectionOrder = []string{"Item 1", "Item 1A", "Item 1B", "Item 2", "Item 3", "Item 4",
	"Item 5", "Item 6", "Item 7", "Item 7A", "Item 8", "Item 9"}

// Sections the pipeline compares; everything else is only used as an end
// boundary for the preceding section.
var wantedSections = map[string]bool{
	"Item 1":  true,
	"Item 1A": true,
	"Item 7":  true,
	"Item 8":  true,
}

var (
	markerPattern = regexp.MustCompile(`(?i)\bITEM\s+(\d+[AB]?)\s*[.:—-]`)

	tagPattern        = regexp.MustCompile(`(?s)<[^>]*>`)
	scriptPattern     = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	blockTagPattern   = regexp.MustCompile(`(?i)</(p|div|tr|table|h[1-6])>|<br\s*/?>`)
	spacePattern      = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// htmlToText strips markup from a filing document, keeping paragraph
// boundaries so the diff engine has stable units to align.
func htmlToText(doc string) string {
	text := scriptPattern.ReplaceAllString(doc, " ")
	text = blockTagPattern.ReplaceAllString(text, "\n\n")
	text = tagPattern.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = spacePattern.ReplaceAllString(text, " ")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ExtractSections splits plain filing text into its named items. For each
// marker the last occurrence wins: the first is almost always the table of
// contents entry, and the body marker comes later in the document.
func ExtractSections(text string) map[string]string {
	type marker struct {
		name  string
		start int
		end   int
	}

	positions := make(map[string]marker)
	for _, match := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		number := strings.ToUpper(text[match[2]:match[3]])
		name := "Item " + number
		positions[name] = marker{name: name, start: match[0], end: match[1]}
	}

	// Order the found markers by document position
	var found []marker
	for _, name := range sectionOrder {
		if m, ok := positions[name]; ok {
			found = append(found, m)
		}
	}
	for i := 0; i < len(found); i++ {
		for j := i + 1; j < len(found); j++ {
			if found[j].start < found[i].start {
				found[i], found[j] = found[j], found[i]
			}
		}
	}

	sections := make(map[string]string)
	for i, m := range found {
		if !wantedSections[m.name] {
			continue
		}
		end := len(text)
		if i+1 < len(found) {
			end = found[i+1].start
		}
		body := strings.TrimSpace(text[m.end:end])
		if body != "" {
			sections[m.name] = body
		}
	}

	return sections
}
