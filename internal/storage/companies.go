package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/model"
)

// GetCompany retrieves entity directory data for a ticker.
func (s *SQLiteStorage) GetCompany(ctx context.Context, ticker string) (*model.Company, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ticker, "ticker"); err != nil {
		return nil, err
	}

	var company model.Company
	var name, cik sql.NullString
	var lastSuccess sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT ticker, company_name, cik, extraction_status, failure_count,
		       last_successful_extraction, updated_at
		FROM companies WHERE ticker = ?
	`, ticker).Scan(
		&company.Ticker, &name, &cik, &company.ExtractionStatus,
		&company.FailureCount, &lastSuccess, &company.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %s: %w", ticker, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company %s: %w", ticker, err)
	}

	company.Name = name.String
	company.CIK = cik.String
	company.LastSuccessfulExtraction = lastSuccess.Time

	return &company, nil
}

// UpsertCompanyStatus records the reliability tag after a pipeline run,
// creating the directory row if the ticker is new. Name and CIK stay empty
// until a background sync fills them in.
func (s *SQLiteStorage) UpsertCompanyStatus(ctx context.Context, ticker string, status model.ExtractionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(ticker, "ticker"); err != nil {
		return err
	}

	now := time.Now().UTC()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT 1 FROM companies WHERE ticker = ?
		`, ticker).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			failureCount := 0
			if status == model.ExtractionBroken {
				failureCount = 1
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO companies (ticker, extraction_status, failure_count, last_successful_extraction, updated_at)
				VALUES (?, ?, ?, ?, ?)
			`, ticker, string(status), failureCount, successTime(status, now), now)
			if err != nil {
				return fmt.Errorf("failed to insert company %s: %w", ticker, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to check company %s: %w", ticker, err)
		}

		if status == model.ExtractionWorking {
			// Success resets the failure count
			_, err = tx.ExecContext(ctx, `
				UPDATE companies
				SET extraction_status = ?, failure_count = 0, last_successful_extraction = ?, updated_at = ?
				WHERE ticker = ?
			`, string(status), now, now, ticker)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE companies
				SET extraction_status = ?, failure_count = failure_count + 1, updated_at = ?
				WHERE ticker = ?
			`, string(status), now, ticker)
		}
		if err != nil {
			return fmt.Errorf("failed to update company %s: %w", ticker, err)
		}
		return nil
	})
}

func successTime(status model.ExtractionStatus, now time.Time) any {
	if status == model.ExtractionWorking {
		return now
	}
	return nil
}
