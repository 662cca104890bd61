package model

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Filing is one dated regulatory document for an entity, broken into named
// sections of extracted narrative text.
type Filing struct {
	FilingDate  time.Time
	Sections    map[string]string
	Accession   string
	CompanyName string
	FilingURL   string
}

// WordCounts returns the whitespace-delimited word count per section.
func (f *Filing) WordCounts() map[string]int {
	counts := make(map[string]int, len(f.Sections))
	for name, text := range f.Sections {
		counts[name] = len(strings.Fields(text))
	}
	return counts
}

// SectionNames returns the extracted section names in sorted order.
func (f *Filing) SectionNames() []string {
	names := make([]string, 0, len(f.Sections))
	for name := range f.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SectionDiff captures the materiality-filtered change set for one section.
type SectionDiff struct {
	Added      []string
	Removed    []string
	Similarity float64
	HasChanges bool
}

// DiffResult maps section names to their change sets.
type DiffResult struct {
	Sections map[string]SectionDiff
}

// Empty reports whether the diff analysis produced no section comparisons.
func (d DiffResult) Empty() bool {
	return len(d.Sections) == 0
}

// SummaryRequest carries everything the summarization adapter needs to turn
// a change set into per-section narrative.
type SummaryRequest struct {
	OldDate     time.Time
	NewDate     time.Time
	Diff        DiffResult
	Ticker      string
	CompanyName string
}

// SummaryResult is the summarization adapter's output with cost accounting.
type SummaryResult struct {
	Summaries   map[string]string
	TotalCost   decimal.Decimal
	TotalTokens int
}
