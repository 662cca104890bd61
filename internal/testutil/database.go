// Package testutil provides shared helpers for package tests: an isolated
// in-memory database with migrations applied and seeded accounts.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tenkdelta/tenkdelta/internal/model"
	"github.com/tenkdelta/tenkdelta/internal/service"
	"github.com/tenkdelta/tenkdelta/internal/storage"
)

// TestDB wraps an in-memory store for one test.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory database with migrations applied.
// It registers cleanup automatically.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedAccount creates an account with the given starting balance and returns
// its id.
func (db *TestDB) SeedAccount(tokens int) string {
	db.t.Helper()

	id := uuid.New().String()
	account := &model.Account{
		ID:              id,
		Email:           id + "@example.com",
		TokensRemaining: tokens,
	}
	if err := db.Storage.CreateAccount(context.Background(), account); err != nil {
		db.t.Fatalf("failed to seed account: %v", err)
	}
	return account.ID
}

// SeedReport saves a minimal completed report for ticker owned by accountID
// and returns it. createdAt controls cache-window placement.
func (db *TestDB) SeedReport(accountID, ticker string, createdAt time.Time) *model.Report {
	db.t.Helper()

	report := &model.Report{
		ID:                uuid.New().String(),
		AccountID:         accountID,
		Ticker:            ticker,
		CompanyName:       ticker + " Inc",
		NewerFilingDate:   createdAt.AddDate(0, -1, 0),
		OlderFilingDate:   createdAt.AddDate(-1, -1, 0),
		SectionsExtracted: []string{"Item 1", "Item 1A", "Item 7", "Item 8"},
		Summaries: map[string]string{
			"Item 1": "The company expanded into two new markets during the fiscal year.",
		},
		TokensConsumed:    5000,
		GenerationSeconds: 42,
		ExtractionSuccess: true,
		CreatedAt:         createdAt,
	}
	if err := db.Storage.SaveReport(context.Background(), report); err != nil {
		db.t.Fatalf("failed to seed report: %v", err)
	}
	return report
}
