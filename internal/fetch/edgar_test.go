package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenkdelta/tenkdelta/internal/common"
)

const testDocument = `<html><body>
<h2>ITEM 1. BUSINESS</h2><p>We sell widgets to enterprise customers in many regions.</p>
<h2>ITEM 1A. RISK FACTORS</h2><p>Widget demand is cyclical and subject to competitive pressure.</p>
<h2>ITEM 7. MANAGEMENT'S DISCUSSION</h2><p>Revenue grew this year on higher widget volumes.</p>
<h2>ITEM 8. FINANCIAL STATEMENTS</h2><p>See the audited statements and accompanying notes.</p>
</body></html>`

// newTestClient points an EDGARClient at a local server standing in for the
// three EDGAR endpoints.
func newTestClient(t *testing.T, handler http.Handler) *EDGARClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewEDGARClient("test-suite admin@example.com")
	client.tickerURL = srv.URL + "/files/company_tickers.json"
	client.submissionsURL = srv.URL + "/submissions/CIK%s.json"
	client.archivesURL = srv.URL + "/Archives/edgar/data/%s/%s/%s"
	return client
}

func edgarHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."},
			"1":{"cik_str":789019,"ticker":"MSFT","title":"Microsoft Corp"}}`)
	})

	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name":"Apple Inc.","filings":{"recent":{
			"accessionNumber":["0000320193-25-000001","0000320193-25-000002","0000320193-24-000003"],
			"filingDate":["2025-03-01","2024-11-01","2024-02-01"],
			"form":["8-K","10-K","10-K"],
			"primaryDocument":["ignore.htm","aapl-20240928.htm","aapl-20230930.htm"]}}}`)
	})

	mux.HandleFunc("/Archives/edgar/data/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, testDocument)
	})

	return mux
}

func TestEDGARClient_Fetch(t *testing.T) {
	client := newTestClient(t, edgarHandler(t))

	filings, err := client.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, filings, 2)

	// Newest first, and only 10-K forms
	assert.Equal(t, "0000320193-25-000002", filings[0].Accession)
	assert.Equal(t, "0000320193-24-000003", filings[1].Accession)
	assert.True(t, filings[0].FilingDate.After(filings[1].FilingDate))
	assert.Equal(t, "Apple Inc.", filings[0].CompanyName)

	require.Contains(t, filings[0].Sections, "Item 1")
	assert.Contains(t, filings[0].Sections["Item 1"], "widgets")
}

func TestEDGARClient_Fetch_UnknownTicker(t *testing.T) {
	client := newTestClient(t, edgarHandler(t))

	_, err := client.Fetch(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrEntityNotFound))
}

func TestEDGARClient_Fetch_TooFewFilings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"0":{"cik_str":1,"ticker":"ONEK","title":"One Filing Corp"}}`)
	})
	mux.HandleFunc("/submissions/CIK0000000001.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name":"One Filing Corp","filings":{"recent":{
			"accessionNumber":["0000000001-25-000001"],
			"filingDate":["2025-01-15"],
			"form":["10-K"],
			"primaryDocument":["onek.htm"]}}}`)
	})
	client := newTestClient(t, mux)

	_, err := client.Fetch(context.Background(), "ONEK")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrExtractionFailed))
	assert.Contains(t, err.Error(), "found 1")
}

func TestEDGARClient_DocumentURL(t *testing.T) {
	client := NewEDGARClient("test-suite admin@example.com")

	url := client.documentURL("0000320193", filingRef{
		Accession:       "0000320193-24-000003",
		PrimaryDocument: "aapl-20230930.htm",
	})

	// Zero padding dropped, accession dashes removed
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/320193/000032019324000003/aapl-20230930.htm",
		url)
}

func TestEDGARClient_RetriesServerErrors(t *testing.T) {
	var attempts int
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."}}`)
	})
	client := newTestClient(t, mux)

	cik, err := client.lookupCIK(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", cik)
	assert.Equal(t, 3, attempts)
}
