package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS accounts (
					id TEXT PRIMARY KEY,
					email TEXT UNIQUE,
					tokens_remaining INTEGER NOT NULL DEFAULT 0 CHECK (tokens_remaining >= 0),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS token_transactions (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL REFERENCES accounts(id),
					kind TEXT NOT NULL,
					amount INTEGER NOT NULL,
					report_id TEXT,
					description TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_token_transactions_account ON token_transactions(account_id)`,

				`CREATE TABLE IF NOT EXISTS reports (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL REFERENCES accounts(id),
					ticker TEXT NOT NULL,
					company_name TEXT,
					newer_filing_date DATETIME,
					older_filing_date DATETIME,
					newer_accession TEXT,
					older_accession TEXT,
					sections_extracted TEXT,
					extraction_issues TEXT,
					extraction_success INTEGER NOT NULL DEFAULT 0,
					refunded INTEGER NOT NULL DEFAULT 0,
					summaries TEXT,
					cost_usd TEXT NOT NULL DEFAULT '0',
					tokens_consumed INTEGER NOT NULL DEFAULT 0,
					generation_seconds INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_reports_account ON reports(account_id)`,

				`CREATE TABLE IF NOT EXISTS error_logs (
					id TEXT PRIMARY KEY,
					account_id TEXT,
					ticker TEXT NOT NULL,
					error_type TEXT NOT NULL,
					error_message TEXT,
					status TEXT NOT NULL DEFAULT 'open',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add extraction detail columns to error logs",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE error_logs ADD COLUMN sections_attempted TEXT`,
				`ALTER TABLE error_logs ADD COLUMN sections_succeeded TEXT`,
				`ALTER TABLE error_logs ADD COLUMN sections_failed TEXT`,
				`ALTER TABLE error_logs ADD COLUMN word_counts TEXT`,
				`ALTER TABLE error_logs ADD COLUMN filing_url TEXT`,
				`ALTER TABLE error_logs ADD COLUMN newer_filing_date DATETIME`,
				`ALTER TABLE error_logs ADD COLUMN older_filing_date DATETIME`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add entity directory and report cache index",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS companies (
					ticker TEXT PRIMARY KEY,
					company_name TEXT,
					cik TEXT,
					extraction_status TEXT NOT NULL DEFAULT 'unknown',
					failure_count INTEGER NOT NULL DEFAULT 0,
					last_successful_extraction DATETIME,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				// Cache lookups are always newest-first per ticker
				`CREATE INDEX IF NOT EXISTS idx_reports_ticker_created ON reports(ticker, created_at DESC)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate runs all pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version of the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
