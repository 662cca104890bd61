package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is the unit of work and of cache: one completed comparison of an
// entity's two most recent filings, owned by the account that paid for it.
// Rows are immutable after creation except the Refunded flag, which may flip
// false -> true exactly once alongside a compensating ledger transaction.
type Report struct {
	CreatedAt         time.Time
	NewerFilingDate   time.Time
	OlderFilingDate   time.Time
	Summaries         map[string]string
	ID                string
	AccountID         string
	Ticker            string
	CompanyName       string
	NewerAccession    string
	OlderAccession    string
	SectionsExtracted []string
	ExtractionIssues  []string
	CostUSD           decimal.Decimal
	TokensConsumed    int
	GenerationSeconds int
	ExtractionSuccess bool
	Refunded          bool
}

// CloneFor returns a copy of the report owned by accountID with the
// incremental cost fields zeroed. Cache hits create these so the original
// row is never mutated; the refunded flag carries over so a flawed source
// stays free for later requesters.
func (r *Report) CloneFor(accountID, newID string, now time.Time) *Report {
	clone := *r
	clone.ID = newID
	clone.AccountID = accountID
	clone.CreatedAt = now
	clone.CostUSD = decimal.Zero
	clone.TokensConsumed = 0
	clone.GenerationSeconds = 0

	clone.SectionsExtracted = append([]string(nil), r.SectionsExtracted...)
	clone.ExtractionIssues = append([]string(nil), r.ExtractionIssues...)
	clone.Summaries = make(map[string]string, len(r.Summaries))
	for k, v := range r.Summaries {
		clone.Summaries[k] = v
	}

	return &clone
}
