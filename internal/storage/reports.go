package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/model"
)

// SaveReport inserts a completed report row. Reports are written exactly
// once by the worker; nothing updates them afterward except the refunded
// flag via RefundReport.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report *model.Report) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReport(report); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertReport(ctx, tx, report)
	})
}

// GetReportByID retrieves a single report.
func (s *SQLiteStorage) GetReportByID(ctx context.Context, id string) (*model.Report, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectReportColumns+` WHERE id = ?`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, common.ErrNotFound)
	}
	return report, err
}

// GetLatestReportForTicker is the cache lookup: the most recent report for
// the ticker created at or after since, regardless of owner or quality.
// Refunded reports are returned too; the caller decides whether a clone of
// one should be charged.
func (s *SQLiteStorage) GetLatestReportForTicker(ctx context.Context, ticker string, since time.Time) (*model.Report, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ticker, "ticker"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectReportColumns+`
		WHERE ticker = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1`, ticker, since)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no fresh report for %s: %w", ticker, common.ErrNotFound)
	}
	return report, err
}

// CloneReportForAccount inserts a copy of source owned by accountID with the
// cost fields zeroed. When charge is true the debit happens in the same
// transaction: if the balance check fails, the clone is rolled back and
// never becomes visible.
func (s *SQLiteStorage) CloneReportForAccount(ctx context.Context, source *model.Report, accountID string, charge bool) (*model.Report, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateReport(source); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}

	clone := source.CloneFor(accountID, uuid.New().String(), time.Now().UTC())

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertReport(ctx, tx, clone); err != nil {
			return err
		}
		if !charge {
			return nil
		}

		balance, err := balanceForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if balance < 1 {
			return fmt.Errorf("account %s has %d tokens: %w", accountID, balance, common.ErrInsufficientBalance)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts SET tokens_remaining = tokens_remaining - 1 WHERE id = ?
		`, accountID); err != nil {
			return fmt.Errorf("failed to decrement balance for %s: %w", accountID, err)
		}

		return insertTransaction(ctx, tx, model.TokenTransaction{
			ID:          uuid.New().String(),
			AccountID:   accountID,
			Kind:        model.KindUsage,
			Amount:      -1,
			ReportID:    clone.ID,
			Description: fmt.Sprintf("Cached report for %s", clone.Ticker),
		})
	})
	if err != nil {
		return nil, err
	}

	return clone, nil
}

const selectReportColumns = `
	SELECT id, account_id, ticker, company_name,
	       newer_filing_date, older_filing_date, newer_accession, older_accession,
	       sections_extracted, extraction_issues, extraction_success, refunded,
	       summaries, cost_usd, tokens_consumed, generation_seconds, created_at
	FROM reports`

func insertReport(ctx context.Context, tx *sql.Tx, report *model.Report) error {
	sections, err := json.Marshal(report.SectionsExtracted)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}
	issues, err := json.Marshal(report.ExtractionIssues)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}
	summaries, err := json.Marshal(report.Summaries)
	if err != nil {
		return fmt.Errorf("failed to marshal summaries: %w", err)
	}

	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
		report.CreatedAt = createdAt
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (
			id, account_id, ticker, company_name,
			newer_filing_date, older_filing_date, newer_accession, older_accession,
			sections_extracted, extraction_issues, extraction_success, refunded,
			summaries, cost_usd, tokens_consumed, generation_seconds, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID, report.AccountID, report.Ticker, nullable(report.CompanyName),
		report.NewerFilingDate, report.OlderFilingDate, nullable(report.NewerAccession), nullable(report.OlderAccession),
		string(sections), string(issues), report.ExtractionSuccess, report.Refunded,
		string(summaries), report.CostUSD.String(), report.TokensConsumed, report.GenerationSeconds, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report %s: %w", report.ID, err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*model.Report, error) {
	var report model.Report
	var companyName, newerAccession, olderAccession sql.NullString
	var sections, issues, summaries, costUSD string

	err := row.Scan(
		&report.ID, &report.AccountID, &report.Ticker, &companyName,
		&report.NewerFilingDate, &report.OlderFilingDate, &newerAccession, &olderAccession,
		&sections, &issues, &report.ExtractionSuccess, &report.Refunded,
		&summaries, &costUSD, &report.TokensConsumed, &report.GenerationSeconds, &report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.CompanyName = companyName.String
	report.NewerAccession = newerAccession.String
	report.OlderAccession = olderAccession.String

	if err := json.Unmarshal([]byte(sections), &report.SectionsExtracted); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sections for %s: %w", report.ID, err)
	}
	if err := json.Unmarshal([]byte(issues), &report.ExtractionIssues); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issues for %s: %w", report.ID, err)
	}
	if err := json.Unmarshal([]byte(summaries), &report.Summaries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summaries for %s: %w", report.ID, err)
	}

	cost, err := decimal.NewFromString(costUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cost for %s: %w", report.ID, err)
	}
	report.CostUSD = cost

	return &report, nil
}
