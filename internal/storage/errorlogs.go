package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tenkdelta/tenkdelta/internal/model"
)

// SaveErrorLog records a pipeline failure for the operator resolution
// workflow. Missing IDs and statuses are filled in.
func (s *SQLiteStorage) SaveErrorLog(ctx context.Context, entry *model.ErrorLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := validateString(entry.Ticker, "ticker"); err != nil {
		return err
	}
	if err := validateString(entry.ErrorType, "errorType"); err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = model.ErrorOpen
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	attempted, err := json.Marshal(entry.SectionsAttempted)
	if err != nil {
		return fmt.Errorf("failed to marshal attempted sections: %w", err)
	}
	succeeded, err := json.Marshal(entry.SectionsSucceeded)
	if err != nil {
		return fmt.Errorf("failed to marshal succeeded sections: %w", err)
	}
	failed, err := json.Marshal(entry.SectionsFailed)
	if err != nil {
		return fmt.Errorf("failed to marshal failed sections: %w", err)
	}
	wordCounts, err := json.Marshal(entry.WordCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal word counts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO error_logs (
			id, account_id, ticker, error_type, error_message, status,
			sections_attempted, sections_succeeded, sections_failed, word_counts,
			filing_url, newer_filing_date, older_filing_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, nullable(entry.AccountID), entry.Ticker, entry.ErrorType,
		nullable(entry.Message), string(entry.Status),
		string(attempted), string(succeeded), string(failed), string(wordCounts),
		nullable(entry.FilingURL), nullTime(entry.NewerFilingDate), nullTime(entry.OlderFilingDate),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert error log for %s: %w", entry.Ticker, err)
	}
	return nil
}

// GetOpenErrorLogs returns unresolved error logs, newest first.
func (s *SQLiteStorage) GetOpenErrorLogs(ctx context.Context) ([]model.ErrorLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, ticker, error_type, error_message, status,
		       sections_attempted, sections_succeeded, sections_failed, word_counts,
		       filing_url, newer_filing_date, older_filing_date, created_at
		FROM error_logs
		WHERE status = ?
		ORDER BY created_at DESC
	`, string(model.ErrorOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to query error logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.ErrorLog
	for rows.Next() {
		var entry model.ErrorLog
		var accountID, message, filingURL sql.NullString
		var attempted, succeeded, failed, wordCounts string
		var newerDate, olderDate sql.NullTime

		if err := rows.Scan(
			&entry.ID, &accountID, &entry.Ticker, &entry.ErrorType, &message, &entry.Status,
			&attempted, &succeeded, &failed, &wordCounts,
			&filingURL, &newerDate, &olderDate, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan error log: %w", err)
		}

		entry.AccountID = accountID.String
		entry.Message = message.String
		entry.FilingURL = filingURL.String
		entry.NewerFilingDate = newerDate.Time
		entry.OlderFilingDate = olderDate.Time

		if err := json.Unmarshal([]byte(attempted), &entry.SectionsAttempted); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attempted sections: %w", err)
		}
		if err := json.Unmarshal([]byte(succeeded), &entry.SectionsSucceeded); err != nil {
			return nil, fmt.Errorf("failed to unmarshal succeeded sections: %w", err)
		}
		if err := json.Unmarshal([]byte(failed), &entry.SectionsFailed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failed sections: %w", err)
		}
		if err := json.Unmarshal([]byte(wordCounts), &entry.WordCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal word counts: %w", err)
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate error logs: %w", err)
	}

	return entries, nil
}

// nullTime maps zero times to SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
