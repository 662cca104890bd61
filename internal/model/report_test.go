package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_CloneFor(t *testing.T) {
	now := time.Now().UTC()
	source := &Report{
		ID:                "source-id",
		AccountID:         "owner",
		Ticker:            "AAPL",
		CompanyName:       "Apple Inc",
		SectionsExtracted: []string{"Item 1", "Item 7"},
		ExtractionIssues:  []string{"Item 8 (newer): appears to be mostly tables/numbers (85% numeric content)"},
		Summaries:         map[string]string{"Item 1": "Expanded services segment."},
		CostUSD:           decimal.RequireFromString("0.42"),
		TokensConsumed:    9000,
		GenerationSeconds: 55,
		ExtractionSuccess: true,
		Refunded:          true,
		CreatedAt:         now.Add(-72 * time.Hour),
	}

	clone := source.CloneFor("requester", "clone-id", now)

	assert.Equal(t, "clone-id", clone.ID)
	assert.Equal(t, "requester", clone.AccountID)
	assert.Equal(t, now, clone.CreatedAt)

	// Cost fields are incremental, not part of the content
	assert.True(t, clone.CostUSD.IsZero())
	assert.Zero(t, clone.TokensConsumed)
	assert.Zero(t, clone.GenerationSeconds)

	// Content and the refunded flag carry over
	assert.Equal(t, source.Summaries, clone.Summaries)
	assert.Equal(t, source.SectionsExtracted, clone.SectionsExtracted)
	assert.True(t, clone.Refunded)

	// Deep copies: mutating the clone must not touch the source
	clone.Summaries["Item 1"] = "changed"
	clone.SectionsExtracted[0] = "changed"
	assert.Equal(t, "Expanded services segment.", source.Summaries["Item 1"])
	assert.Equal(t, "Item 1", source.SectionsExtracted[0])
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobQueued.Terminal())
	assert.False(t, JobProcessing.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
}

func TestFiling_WordCounts(t *testing.T) {
	filing := &Filing{Sections: map[string]string{
		"Item 1": "one two three",
		"Item 7": "",
	}}

	counts := filing.WordCounts()
	require.Len(t, counts, 2)
	assert.Equal(t, 3, counts["Item 1"])
	assert.Equal(t, 0, counts["Item 7"])

	assert.Equal(t, []string{"Item 1", "Item 7"}, filing.SectionNames())
}
