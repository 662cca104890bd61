// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/tenkdelta/tenkdelta/internal/model"
)

// Storage defines the contract for our persistence layer. Every method is
// internally transactional: callers never hold a database transaction across
// long-latency work.
type Storage interface {
	// Account and ledger operations. DebitAccount atomically checks
	// balance >= 1, decrements, and appends a usage transaction of -1;
	// it fails with common.ErrInsufficientBalance instead of ever letting
	// a balance go negative. RefundReport flips the report's refunded flag
	// and appends the compensating +1 transaction in one unit of work, and
	// is a no-op on an already-refunded report.
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	DebitAccount(ctx context.Context, accountID, description, reportID string) error
	CreditAccount(ctx context.Context, accountID string, amount int, kind model.TransactionKind, description string) error
	RefundReport(ctx context.Context, accountID, reportID, reason string) error
	GetTransactionsByAccount(ctx context.Context, accountID string) ([]model.TokenTransaction, error)

	// Report operations. GetLatestReportForTicker is the cache lookup.
	// CloneReportForAccount inserts the clone and, when charge is true,
	// performs the debit in the same unit of work so the clone is never
	// visible without a successful charge.
	SaveReport(ctx context.Context, report *model.Report) error
	GetReportByID(ctx context.Context, id string) (*model.Report, error)
	GetLatestReportForTicker(ctx context.Context, ticker string, since time.Time) (*model.Report, error)
	CloneReportForAccount(ctx context.Context, source *model.Report, accountID string, charge bool) (*model.Report, error)

	// Error log operations
	SaveErrorLog(ctx context.Context, entry *model.ErrorLog) error
	GetOpenErrorLogs(ctx context.Context) ([]model.ErrorLog, error)

	// Entity directory operations
	GetCompany(ctx context.Context, ticker string) (*model.Company, error)
	UpsertCompanyStatus(ctx context.Context, ticker string, status model.ExtractionStatus) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// FilingSource fetches and structurally extracts the two most recent
// comparable filings for an entity, newest first. Implementations must
// return at least two filings or an error.
type FilingSource interface {
	Fetch(ctx context.Context, ticker string) ([]model.Filing, error)
}

// DiffEngine compares old and new section text and emits a
// materiality-filtered change set. Implementations must be deterministic.
type DiffEngine interface {
	Compare(oldSections, newSections map[string]string) model.DiffResult
}

// Summarizer turns a change set into natural-language narrative per section,
// with token and cost accounting.
type Summarizer interface {
	Summarize(ctx context.Context, req model.SummaryRequest) (model.SummaryResult, error)
}

// Dispatcher accepts a job for asynchronous execution. Dispatch returns as
// soon as the job is accepted; the run outcome is only observable through
// the report store, the ledger, and the callback.
type Dispatcher interface {
	Dispatch(ctx context.Context, job model.Job) error
}

// CallbackSender delivers a terminal job notification. Delivery is
// fire-and-forget: errors are reported to the caller for logging but must
// never affect the job's own outcome.
type CallbackSender interface {
	Send(ctx context.Context, callbackURL string, payload model.CallbackPayload) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
