package quality

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenkdelta/tenkdelta/internal/model"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("narrative ", n))
}

func goodSections() map[string]string {
	return map[string]string{
		"Item 1":  words(1500),
		"Item 1A": words(3500),
		"Item 7":  words(3500),
		"Item 8":  words(2500),
	}
}

func goodSummaries() map[string]string {
	summary := "The company disclosed a new operating segment and escalated supply chain risk language."
	return map[string]string{
		"Item 1":  summary,
		"Item 1A": summary,
		"Item 7":  summary,
		"Item 8":  summary,
	}
}

func goodFilings() []model.Filing {
	return []model.Filing{
		{FilingDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Sections: goodSections()},
		{FilingDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Sections: goodSections()},
	}
}

func goodDiff() model.DiffResult {
	return model.DiffResult{Sections: map[string]model.SectionDiff{
		"Item 1": {HasChanges: true, Added: []string{"new paragraph"}},
	}}
}

func TestValidate_CleanRunPasses(t *testing.T) {
	result := Validate(goodFilings(), goodDiff(), goodSummaries())

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Issues)
}

func TestValidate_MissingSections(t *testing.T) {
	filings := goodFilings()
	delete(filings[0].Sections, "Item 7")
	delete(filings[0].Sections, "Item 8")

	result := Validate(filings, goodDiff(), goodSummaries())

	require.False(t, result.IsValid)
	require.NotEmpty(t, result.Issues)
	assert.Contains(t, result.Issues[0], "Newer filing: Missing sections:")
	assert.Contains(t, result.Issues[0], "Item 7")
	assert.Contains(t, result.Issues[0], "Item 8")
}

func TestValidate_NewerFilingTooShort(t *testing.T) {
	filings := goodFilings()
	filings[0].Sections["Item 1A"] = words(200)

	result := Validate(filings, goodDiff(), goodSummaries())

	require.False(t, result.IsValid)
	var found bool
	for _, issue := range result.Issues {
		if strings.Contains(issue, "Item 1A (newer)") {
			found = true
			// The message must name both the actual and the expected count
			assert.Contains(t, issue, "200 words")
			assert.Contains(t, issue, "3000+")
		}
	}
	assert.True(t, found, "expected a word count issue for Item 1A, got %v", result.Issues)
}

func TestValidate_OlderShortAloneIsTolerated(t *testing.T) {
	filings := goodFilings()
	filings[1].Sections["Item 7"] = words(500)

	result := Validate(filings, goodDiff(), goodSummaries())

	// A short section in the older filing only matters if the newer one
	// shares the problem
	assert.True(t, result.IsValid, "issues: %v", result.Issues)
}

func TestValidate_BothFilingsShort(t *testing.T) {
	filings := goodFilings()
	filings[0].Sections["Item 7"] = words(400)
	filings[1].Sections["Item 7"] = words(500)

	result := Validate(filings, goodDiff(), goodSummaries())

	require.False(t, result.IsValid)
	joined := strings.Join(result.Issues, "\n")
	assert.Contains(t, joined, "both filings too short")
}

func TestValidate_NumericDensity(t *testing.T) {
	// 4000 words, nearly all carrying digits: extracted tables, not prose
	table := strings.Repeat("42,117 9.5% $1,204 88 ", 1000)
	filings := goodFilings()
	filings[0].Sections["Item 8"] = table

	result := Validate(filings, goodDiff(), goodSummaries())

	require.False(t, result.IsValid)
	joined := strings.Join(result.Issues, "\n")
	assert.Contains(t, joined, "mostly tables/numbers")
}

func TestValidate_SummaryProblems(t *testing.T) {
	tests := []struct {
		name      string
		summaries map[string]string
		want      string
	}{
		{
			name:      "no summaries at all",
			summaries: map[string]string{},
			want:      "No AI summaries generated",
		},
		{
			name: "missing one section",
			summaries: map[string]string{
				"Item 1":  goodSummaries()["Item 1"],
				"Item 1A": goodSummaries()["Item 1A"],
				"Item 7":  goodSummaries()["Item 7"],
			},
			want: "Missing AI summary for Item 8",
		},
		{
			name: "summary too short",
			summaries: func() map[string]string {
				s := goodSummaries()
				s["Item 7"] = "No changes."
				return s
			}(),
			want: "Item 7: AI summary too short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(goodFilings(), goodDiff(), tt.summaries)
			require.False(t, result.IsValid)
			assert.Contains(t, strings.Join(result.Issues, "\n"), tt.want)
		})
	}
}

func TestValidate_DiffDidNotRun(t *testing.T) {
	result := Validate(goodFilings(), model.DiffResult{}, goodSummaries())

	require.False(t, result.IsValid)
	assert.Contains(t, result.Issues, "Diff analysis did not run")
}

func TestValidate_Deterministic(t *testing.T) {
	filings := goodFilings()
	delete(filings[0].Sections, "Item 1")
	filings[0].Sections["Item 7"] = words(100)
	filings[0].Sections["Item 8"] = words(100)

	first := Validate(filings, goodDiff(), map[string]string{})
	for i := 0; i < 20; i++ {
		again := Validate(filings, goodDiff(), map[string]string{})
		require.Equal(t, first.Issues, again.Issues, "issue order must be stable")
	}
}
