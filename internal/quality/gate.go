// Package quality implements the deterministic validator that decides
// whether an extraction run is good enough to charge for. A failing result
// still produces a report; it just triggers an automatic refund.
package quality

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tenkdelta/tenkdelta/internal/model"
)

// RequiredSections every filing must contain for a valid comparison.
var RequiredSections = []string{"Item 1", "Item 1A", "Item 7", "Item 8"}

// Per-section minimum word counts. Item 8 is lower because some filings
// only carry a pointer to the financial statements.
var minWordCounts = map[string]int{
	"Item 1":  1000,
	"Item 1A": 3000,
	"Item 7":  3000,
	"Item 8":  2000,
}

const (
	// Above this ratio of digit-bearing words a section is assumed to be
	// extracted tables rather than narrative prose.
	numericDensityLimit = 0.8
	// Density is only meaningful with a reasonable sample.
	densityMinWords = 100
	// Summaries shorter than this are treated as missing.
	minSummaryLength = 50
)

// Result is the gate's verdict. IsValid is true iff Issues is empty.
type Result struct {
	Issues  []string
	IsValid bool
}

// Validate inspects extraction completeness, section length, and content
// shape. All rules are evaluated and accumulated so a single run reports
// every issue. The function is pure: fixed inputs always produce the same
// result, and nothing is fetched or mutated.
//
// filings must be ordered newest first; the newer filing is what the user
// is paying to understand, so its problems are always flagged while
// older-filing problems only count when the newer filing shares them.
func Validate(filings []model.Filing, diff model.DiffResult, summaries map[string]string) Result {
	var issues []string

	issues = append(issues, missingSectionIssues(filings)...)
	issues = append(issues, wordCountIssues(filings)...)
	issues = append(issues, densityIssues(filings)...)
	issues = append(issues, summaryIssues(summaries)...)

	if diff.Empty() {
		issues = append(issues, "Diff analysis did not run")
	}

	return Result{
		IsValid: len(issues) == 0,
		Issues:  issues,
	}
}

func filingLabel(i int) string {
	if i == 0 {
		return "newer"
	}
	return "older"
}

func missingSectionIssues(filings []model.Filing) []string {
	var issues []string
	for i, filing := range filings {
		var missing []string
		for _, section := range RequiredSections {
			if _, ok := filing.Sections[section]; !ok {
				missing = append(missing, section)
			}
		}
		if len(missing) > 0 {
			label := filingLabel(i)
			issues = append(issues, fmt.Sprintf("%s filing: Missing sections: %s",
				strings.ToUpper(label[:1])+label[1:], strings.Join(missing, ", ")))
		}
	}
	return issues
}

func wordCountIssues(filings []model.Filing) []string {
	var issues []string
	for i, filing := range filings {
		for _, section := range sortedSections(filing.Sections) {
			minWords, ok := minWordCounts[section]
			if !ok {
				continue
			}
			wordCount := len(strings.Fields(filing.Sections[section]))
			if wordCount >= minWords {
				continue
			}

			if i == 0 {
				issues = append(issues, fmt.Sprintf(
					"%s (newer): only %d words (expected %d+) - newer filing extraction failed",
					section, wordCount, minWords))
				continue
			}

			// Older filing short: only a problem if the newer one is too,
			// otherwise the comparison can still be made.
			newerCount := len(strings.Fields(filings[0].Sections[section]))
			if newerCount < minWords {
				issues = append(issues, fmt.Sprintf(
					"%s: both filings too short (newer: %d, older: %d, expected %d+)",
					section, newerCount, wordCount, minWords))
			}
		}
	}
	return issues
}

func densityIssues(filings []model.Filing) []string {
	var issues []string
	for i, filing := range filings {
		for _, section := range sortedSections(filing.Sections) {
			ratio, enough := numericRatio(filing.Sections[section])
			if !enough || ratio <= numericDensityLimit {
				continue
			}

			if i == 0 {
				issues = append(issues, fmt.Sprintf(
					"%s (newer): appears to be mostly tables/numbers (%.0f%% numeric content)",
					section, ratio*100))
				continue
			}

			newerRatio, newerEnough := numericRatio(filings[0].Sections[section])
			if newerEnough && newerRatio > numericDensityLimit {
				issues = append(issues, fmt.Sprintf(
					"%s: both filings appear to be mostly tables (%.0f%% / %.0f%% numeric)",
					section, newerRatio*100, ratio*100))
			}
		}
	}
	return issues
}

func summaryIssues(summaries map[string]string) []string {
	if len(summaries) == 0 {
		return []string{"No AI summaries generated"}
	}

	var issues []string
	for _, section := range RequiredSections {
		summary, ok := summaries[section]
		switch {
		case !ok:
			issues = append(issues, fmt.Sprintf("Missing AI summary for %s", section))
		case len(summary) < minSummaryLength:
			issues = append(issues, fmt.Sprintf("%s: AI summary too short", section))
		}
	}
	return issues
}

// numericRatio returns the fraction of whitespace-delimited words containing
// at least one digit, and whether the section had enough words to judge.
func numericRatio(content string) (float64, bool) {
	words := strings.Fields(content)
	if len(words) <= densityMinWords {
		return 0, false
	}

	numberWords := 0
	for _, word := range words {
		if strings.ContainsFunc(word, unicode.IsDigit) {
			numberWords++
		}
	}
	return float64(numberWords) / float64(len(words)), true
}

// sortedSections keeps issue ordering deterministic across runs.
func sortedSections(sections map[string]string) []string {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
