package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filingFixture = `<html><head><title>FORM 10-K</title>
<style>body { font-family: serif; }</style>
<script>var x = 1;</script></head><body>
<p>TABLE OF CONTENTS</p>
<p>Item 1. Business &mdash; page 3</p>
<p>Item 1A. Risk Factors &mdash; page 12</p>
<p>Item 7. Management&#8217;s Discussion &mdash; page 30</p>
<p>Item 8. Financial Statements &mdash; page 55</p>
<h2>ITEM 1. BUSINESS</h2>
<p>We design and sell consumer electronics worldwide.</p>
<p>Our products are distributed through retail&nbsp;and online channels.</p>
<h2>ITEM 1A. RISK FACTORS</h2>
<p>Our business depends on supply chain stability in several regions.</p>
<h2>ITEM 7. MANAGEMENT'S DISCUSSION AND ANALYSIS</h2>
<p>Net revenue increased compared to the prior fiscal year.</p>
<h2>ITEM 8. FINANCIAL STATEMENTS AND SUPPLEMENTARY DATA</h2>
<table><tr><td>Revenue</td><td>100</td></tr></table>
<p>See accompanying notes.</p>
</body></html>`

func TestHTMLToText(t *testing.T) {
	text := htmlToText(filingFixture)

	assert.NotContains(t, text, "<p>", "tags must be stripped")
	assert.NotContains(t, text, "var x", "scripts must be stripped")
	assert.NotContains(t, text, "font-family", "styles must be stripped")
	assert.NotContains(t, text, "\u00a0", "non-breaking spaces must be normalized")
	assert.Contains(t, text, "retail and online channels")
	// Block boundaries become paragraph breaks
	assert.Contains(t, text, "\n\n")
}

func TestExtractSections(t *testing.T) {
	sections := ExtractSections(htmlToText(filingFixture))

	require.Contains(t, sections, "Item 1")
	require.Contains(t, sections, "Item 1A")
	require.Contains(t, sections, "Item 7")
	require.Contains(t, sections, "Item 8")

	// The body marker must win over the table-of-contents entry
	assert.Contains(t, sections["Item 1"], "consumer electronics")
	assert.NotContains(t, sections["Item 1"], "page 3")

	// Item 1 must end where Item 1A begins
	assert.NotContains(t, sections["Item 1"], "supply chain stability")
	assert.Contains(t, sections["Item 1A"], "supply chain stability")

	assert.Contains(t, sections["Item 7"], "Net revenue increased")
	assert.Contains(t, sections["Item 8"], "accompanying notes")
}

func TestExtractSections_MissingSections(t *testing.T) {
	text := "ITEM 1. BUSINESS\n\nWe make widgets for industrial customers across many markets.\n\n" +
		"ITEM 8: FINANCIAL STATEMENTS\n\nSee the audited statements attached to this report."

	sections := ExtractSections(text)

	assert.Contains(t, sections, "Item 1")
	assert.Contains(t, sections, "Item 8")
	assert.NotContains(t, sections, "Item 1A")
	assert.NotContains(t, sections, "Item 7")
}

func TestExtractSections_EmptyText(t *testing.T) {
	sections := ExtractSections("")
	assert.Empty(t, sections)
}

func TestExtractSections_CaseInsensitiveMarkers(t *testing.T) {
	text := "Item 1a. Risk Factors\n\n" + strings.Repeat("risk disclosure text ", 10)

	sections := ExtractSections(text)

	require.Contains(t, sections, "Item 1A")
	assert.Contains(t, sections["Item 1A"], "risk disclosure")
}
