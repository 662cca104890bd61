package summarize

import (
	"fmt"
	"strings"

	"github.com/tenkdelta/tenkdelta/internal/model"
)

// Diff excerpts are truncated so a bloated section cannot blow the context
// window for the whole run.
const maxExcerptChars = 60000

// buildPrompt renders the evidence-constrained summarization prompt for one
// section. The constraint wording matters: the model must treat the removed
// and added excerpts as the entire universe of facts, which is what keeps
// summaries free of hallucinated figures.
func buildPrompt(req model.SummaryRequest, section string, diff model.SectionDiff) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are analyzing changes in SEC 10-K filings for investors. Your accuracy is critical.\n\n")
	fmt.Fprintf(&b, "CONTEXT:\nCompany: %s (%s)\nOld Filing: 10-K filed %s\nNew Filing: 10-K filed %s\nSection: %s\n\n",
		req.CompanyName, req.Ticker,
		req.OldDate.Format("2006-01-02"), req.NewDate.Format("2006-01-02"),
		section)

	b.WriteString(`EVIDENCE CONSTRAINT:
Use ONLY the REMOVED and ADDED content below. You have no access to any
information outside these excerpts. If a fact, number, product, risk, or
statement does not appear in them, it does not exist. Do not rely on prior
knowledge or industry understanding. If a change is not explicitly supported
by the diff text, do not report it.

TASK:
Identify explicit disclosure changes that fall into these categories:
1. Risk & uncertainty (new or escalated risk language)
2. Business scope & structure (markets, segments, product lines)
3. Financial & performance metrics (reported figures, KPIs, revenue mix)
4. Governance & leadership
5. Regulatory, legal, or compliance

Write a concise narrative summary of the evidenced changes. If nothing in
the diff fits a category, omit that category. If no material changes are
evidenced at all, say exactly that.

`)

	fmt.Fprintf(&b, "REMOVED CONTENT (present in old filing only):\n%s\n\n", excerpt(diff.Removed))
	fmt.Fprintf(&b, "ADDED CONTENT (present in new filing only):\n%s\n", excerpt(diff.Added))

	return b.String()
}

func excerpt(paragraphs []string) string {
	if len(paragraphs) == 0 {
		return "(none)"
	}
	joined := strings.Join(paragraphs, "\n\n")
	if len(joined) > maxExcerptChars {
		joined = joined[:maxExcerptChars] + "\n[truncated]"
	}
	return joined
}
