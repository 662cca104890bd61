// Package orchestrator implements the request-facing controller: cache
// lookup, ledger charging, asynchronous dispatch to the worker, and
// idempotent handling of worker callbacks. The orchestrator is stateless by
// design: everything durable lives in the report store and the ledger, so
// any number of instances can serve requests concurrently.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/ledger"
	"github.com/tenkdelta/tenkdelta/internal/model"
	"github.com/tenkdelta/tenkdelta/internal/service"
)

// DefaultCacheWindow is how long an existing report satisfies new requests
// for the same entity.
const DefaultCacheWindow = 30 * 24 * time.Hour

// jobRetention is how long finished job telemetry stays pollable before the
// table sweeps it.
const jobRetention = time.Hour

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}([.-][A-Z]{1,2})?$`)

// Orchestrator coordinates report requests.
type Orchestrator struct {
	storage     service.Storage
	ledger      *ledger.Ledger
	dispatcher  service.Dispatcher
	jobs        *jobTable
	callbackURL string
	cacheWindow time.Duration
}

// Config holds orchestrator options.
type Config struct {
	// CallbackURL is where the worker posts terminal notifications.
	CallbackURL string
	// CacheWindow overrides the report freshness window.
	CacheWindow time.Duration
}

// New creates an orchestrator.
func New(storage service.Storage, ldg *ledger.Ledger, dispatcher service.Dispatcher, cfg Config) *Orchestrator {
	window := cfg.CacheWindow
	if window <= 0 {
		window = DefaultCacheWindow
	}
	return &Orchestrator{
		storage:     storage,
		ledger:      ldg,
		dispatcher:  dispatcher,
		jobs:        newJobTable(jobRetention),
		callbackURL: cfg.CallbackURL,
		cacheWindow: window,
	}
}

// RequestOutcome is the synchronous answer to a report request: either a
// cached report served immediately, or an accepted job running out of band.
type RequestOutcome struct {
	ReportID string
	JobID    string
	Status   model.JobStatus
	Cached   bool
}

// RequestReport serves a report request for the authenticated account.
//
// A fresh cached report for the entity is cloned for the account and
// charged synchronously (free when the source was refunded for quality).
// Otherwise the balance is pre-flight checked and a job is dispatched; the
// authoritative debit happens when the worker completes, which keeps refund
// traffic limited to quality failures.
func (o *Orchestrator) RequestReport(ctx context.Context, accountID, ticker string) (RequestOutcome, error) {
	ticker = NormalizeTicker(ticker)
	if !tickerPattern.MatchString(ticker) {
		return RequestOutcome{}, common.NewUserError(
			fmt.Sprintf("unknown ticker %q", ticker), common.ErrEntityNotFound)
	}

	if _, err := o.storage.GetAccount(ctx, accountID); err != nil {
		return RequestOutcome{}, err
	}

	since := time.Now().UTC().Add(-o.cacheWindow)
	source, err := o.storage.GetLatestReportForTicker(ctx, ticker, since)
	switch {
	case err == nil:
		return o.serveCached(ctx, accountID, ticker, source)
	case errors.Is(err, common.ErrNotFound):
		return o.dispatch(ctx, accountID, ticker)
	default:
		return RequestOutcome{}, fmt.Errorf("cache lookup failed: %w", err)
	}
}

// serveCached clones the cached report for the requesting account. The
// clone and its charge commit together: an insufficient balance rolls the
// clone back before anyone can see it.
func (o *Orchestrator) serveCached(ctx context.Context, accountID, ticker string, source *model.Report) (RequestOutcome, error) {
	charge := !source.Refunded

	clone, err := o.storage.CloneReportForAccount(ctx, source, accountID, charge)
	if err != nil {
		return RequestOutcome{}, err
	}

	slog.Info("Served cached report",
		"ticker", ticker,
		"account_id", accountID,
		"source_report_id", source.ID,
		"report_id", clone.ID,
		"charged", charge)

	return RequestOutcome{
		Cached:   true,
		ReportID: clone.ID,
		Status:   model.JobCompleted,
	}, nil
}

// dispatch pre-flight checks the balance and hands the job to the worker.
// Two concurrent requests for the same new entity may both land here and
// both dispatch; that duplication is accepted in exchange for never
// blocking a request on another account's run.
func (o *Orchestrator) dispatch(ctx context.Context, accountID, ticker string) (RequestOutcome, error) {
	balance, err := o.ledger.Balance(ctx, accountID)
	if err != nil {
		return RequestOutcome{}, err
	}
	if balance < 1 {
		return RequestOutcome{}, common.NewUserError(
			fmt.Sprintf("a report costs 1 token, %d remaining", balance),
			common.ErrInsufficientBalance)
	}

	job := model.Job{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Ticker:      ticker,
		CallbackURL: o.callbackURL,
		Status:      model.JobQueued,
		StartedAt:   time.Now().UTC(),
	}

	o.jobs.put(job)

	if err := o.dispatcher.Dispatch(ctx, job); err != nil {
		o.jobs.remove(job.ID)
		return RequestOutcome{}, fmt.Errorf("failed to dispatch job: %w", err)
	}

	slog.Info("Dispatched report job",
		"job_id", job.ID,
		"ticker", ticker,
		"account_id", accountID)

	return RequestOutcome{
		JobID:  job.ID,
		Status: model.JobQueued,
	}, nil
}

// HandleCallback processes a terminal notification from the worker. The
// durable outcome was already written to the report store and ledger before
// the callback fired, so this only updates telemetry: duplicates and
// out-of-order deliveries for the same job are logged and otherwise
// ignored, and no ledger or store mutation ever happens here.
func (o *Orchestrator) HandleCallback(payload model.CallbackPayload) {
	job, ok := o.jobs.get(payload.JobID)
	if !ok {
		slog.Warn("Callback for unknown job", "job_id", payload.JobID)
		return
	}

	if job.Status.Terminal() {
		slog.Info("Duplicate callback ignored",
			"job_id", payload.JobID,
			"status", payload.Status)
		return
	}

	job.Status = model.JobStatus(payload.Status)
	job.ReportID = payload.ReportID
	job.Error = payload.Error
	job.Progress = 100
	o.jobs.put(job)

	slog.Info("Job finished",
		"job_id", payload.JobID,
		"status", payload.Status,
		"report_id", payload.ReportID,
		"refunded", payload.Refunded)
}

// UpdateProgress records an observability-only progress marker for a job.
// It never affects the job state machine.
func (o *Orchestrator) UpdateProgress(jobID string, progress int, step string) {
	job, ok := o.jobs.get(jobID)
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = model.JobProcessing
	job.Progress = progress
	job.CurrentStep = step
	o.jobs.put(job)
}

// JobStatus returns telemetry for a job, if this instance has seen it.
func (o *Orchestrator) JobStatus(jobID string) (model.Job, bool) {
	return o.jobs.get(jobID)
}

// ActiveJobs counts jobs this instance has dispatched that are not yet
// terminal.
func (o *Orchestrator) ActiveJobs() int {
	return o.jobs.active()
}

// NormalizeTicker case-folds and trims an entity identifier.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
