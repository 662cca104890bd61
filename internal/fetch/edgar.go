// Package fetch implements the filing source adapter: retrieving an
// entity's two most recent annual filings from SEC EDGAR and structurally
// extracting the named sections the pipeline compares.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/model"
	"github.com/tenkdelta/tenkdelta/internal/service"
)

const (
	defaultTickerURL      = "https://www.sec.gov/files/company_tickers.json"
	defaultSubmissionsURL = "https://data.sec.gov/submissions/CIK%s.json"
	defaultArchivesURL    = "https://www.sec.gov/Archives/edgar/data/%s/%s/%s"
)

// EDGARClient implements service.FilingSource against SEC EDGAR. EDGAR
// requires a descriptive User-Agent on every request.
type EDGARClient struct {
	httpClient     *http.Client
	userAgent      string
	tickerURL      string
	submissionsURL string
	archivesURL    string
}

// NewEDGARClient creates a filing source for the given User-Agent string.
func NewEDGARClient(userAgent string) *EDGARClient {
	return &EDGARClient{
		userAgent:      userAgent,
		tickerURL:      defaultTickerURL,
		submissionsURL: defaultSubmissionsURL,
		archivesURL:    defaultArchivesURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch returns the entity's two most recent 10-K filings, newest first,
// with their sections extracted. Fewer than two comparable filings is a
// fatal extraction failure.
func (c *EDGARClient) Fetch(ctx context.Context, ticker string) ([]model.Filing, error) {
	cik, err := c.lookupCIK(ctx, ticker)
	if err != nil {
		return nil, err
	}

	refs, companyName, err := c.recentAnnualFilings(ctx, cik)
	if err != nil {
		return nil, err
	}
	if len(refs) < 2 {
		return nil, fmt.Errorf("need 2 10-K filings to compare, found %d for %s: %w",
			len(refs), ticker, common.ErrExtractionFailed)
	}
	refs = refs[:2]

	filings := make([]model.Filing, 0, 2)
	for _, ref := range refs {
		doc, err := c.fetchDocument(ctx, cik, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch filing %s: %w", ref.Accession, err)
		}

		sections := ExtractSections(htmlToText(doc))

		filings = append(filings, model.Filing{
			FilingDate:  ref.FilingDate,
			Accession:   ref.Accession,
			CompanyName: companyName,
			FilingURL:   c.documentURL(cik, ref),
			Sections:    sections,
		})
	}

	return filings, nil
}

// filingRef points at one filing in the submissions index.
type filingRef struct {
	FilingDate      time.Time
	Accession       string
	PrimaryDocument string
}

// lookupCIK resolves a ticker to its zero-padded CIK number.
func (c *EDGARClient) lookupCIK(ctx context.Context, ticker string) (string, error) {
	body, err := c.get(ctx, c.tickerURL)
	if err != nil {
		return "", fmt.Errorf("failed to load ticker directory: %w", err)
	}

	// The directory is a map of arbitrary indexes to entries
	var directory map[string]struct {
		CIK    int64  `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &directory); err != nil {
		return "", fmt.Errorf("failed to parse ticker directory: %w", err)
	}

	for _, entry := range directory {
		if strings.EqualFold(entry.Ticker, ticker) {
			return fmt.Sprintf("%010d", entry.CIK), nil
		}
	}

	return "", fmt.Errorf("ticker %s: %w", ticker, common.ErrEntityNotFound)
}

// recentAnnualFilings lists the entity's 10-K filings, newest first.
func (c *EDGARClient) recentAnnualFilings(ctx context.Context, cik string) ([]filingRef, string, error) {
	body, err := c.get(ctx, fmt.Sprintf(c.submissionsURL, cik))
	if err != nil {
		return nil, "", fmt.Errorf("failed to load submissions for CIK %s: %w", cik, err)
	}

	var submissions struct {
		Name    string `json:"name"`
		Filings struct {
			Recent struct {
				AccessionNumber []string `json:"accessionNumber"`
				FilingDate      []string `json:"filingDate"`
				Form            []string `json:"form"`
				PrimaryDocument []string `json:"primaryDocument"`
			} `json:"recent"`
		} `json:"filings"`
	}
	if err := json.Unmarshal(body, &submissions); err != nil {
		return nil, "", fmt.Errorf("failed to parse submissions: %w", err)
	}

	recent := submissions.Filings.Recent
	var refs []filingRef
	for i, form := range recent.Form {
		if form != "10-K" {
			continue
		}
		filed, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			continue
		}
		refs = append(refs, filingRef{
			FilingDate:      filed,
			Accession:       recent.AccessionNumber[i],
			PrimaryDocument: recent.PrimaryDocument[i],
		})
	}

	return refs, submissions.Name, nil
}

func (c *EDGARClient) fetchDocument(ctx context.Context, cik string, ref filingRef) (string, error) {
	body, err := c.get(ctx, c.documentURL(cik, ref))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *EDGARClient) documentURL(cik string, ref filingRef) string {
	shortCIK := strings.TrimLeft(cik, "0")
	accession := strings.ReplaceAll(ref.Accession, "-", "")
	return fmt.Sprintf(c.archivesURL, shortCIK, accession, ref.PrimaryDocument)
}

// get performs one retried GET with the EDGAR-required headers.
func (c *EDGARClient) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("edgar: %w", common.ErrRateLimit)
		}
		if resp.StatusCode != http.StatusOK {
			return &common.RetryableError{
				Err:       fmt.Errorf("edgar returned status %d for %s", resp.StatusCode, url),
				Retryable: resp.StatusCode >= 500,
			}
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond})
	if err != nil {
		return nil, err
	}

	return body, nil
}
