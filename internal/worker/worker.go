// Package worker runs the report-generation pipeline: fetch the two most
// recent filings, diff their sections, summarize the changes, gate the
// result on quality, persist the report, settle the ledger, and notify the
// orchestrator. Each job runs in its own goroutine under a hard deadline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/model"
	"github.com/tenkdelta/tenkdelta/internal/quality"
	"github.com/tenkdelta/tenkdelta/internal/service"
)

// DefaultTimeout bounds one pipeline run end to end.
const DefaultTimeout = 5 * time.Minute

// ProgressFunc receives observability-only progress markers. It may be nil.
type ProgressFunc func(jobID string, progress int, step string)

// Worker executes report jobs. It implements service.Dispatcher.
type Worker struct {
	storage    service.Storage
	source     service.FilingSource
	differ     service.DiffEngine
	summarizer service.Summarizer
	callbacks  service.CallbackSender
	progress   ProgressFunc
	timeout    time.Duration
	active     atomic.Int64
}

// Config holds worker options.
type Config struct {
	// Timeout overrides the per-job deadline.
	Timeout time.Duration
	// Progress receives step markers; nil disables progress reporting.
	Progress ProgressFunc
}

// New creates a worker.
func New(storage service.Storage, source service.FilingSource, differ service.DiffEngine, summarizer service.Summarizer, callbacks service.CallbackSender, cfg Config) *Worker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Worker{
		storage:    storage,
		source:     source,
		differ:     differ,
		summarizer: summarizer,
		callbacks:  callbacks,
		progress:   cfg.Progress,
		timeout:    timeout,
	}
}

// Dispatch accepts the job and runs it asynchronously. The run outcome is
// observable only through the report store, the ledger, and the callback.
func (w *Worker) Dispatch(_ context.Context, job model.Job) error {
	w.active.Add(1)
	go func() {
		defer w.active.Add(-1)
		w.run(job)
	}()
	return nil
}

// ActiveJobs counts currently running pipelines.
func (w *Worker) ActiveJobs() int {
	return int(w.active.Load())
}

// run executes the whole pipeline for one job. It never returns an error:
// every outcome ends as either a saved report or a saved error log, plus
// exactly one best-effort callback.
func (w *Worker) run(job model.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	started := time.Now()
	logger := slog.With("job_id", job.ID, "ticker", job.Ticker, "account_id", job.AccountID)
	logger.Info("Starting report job")

	w.report(job.ID, 5, "starting")

	report, err := w.generate(ctx, job, started)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", common.ErrWorkerTimeout, w.timeout, err)
		}
		w.fail(ctx, job, err, logger)
		return
	}

	logger.Info("Report job completed",
		"report_id", report.ID,
		"refunded", report.Refunded,
		"duration_seconds", report.GenerationSeconds,
		"cost_usd", report.CostUSD.String())

	w.report(job.ID, 100, "completed")
	w.notify(ctx, job, model.CallbackPayload{
		JobID:    job.ID,
		Status:   string(model.JobCompleted),
		ReportID: report.ID,
		Refunded: report.Refunded,
	}, logger)
}

// generate runs fetch, diff, summarize, and the quality gate, persists the
// report, and settles the ledger. A quality failure is not an error here:
// the report is still saved and delivered, just refunded.
func (w *Worker) generate(ctx context.Context, job model.Job, started time.Time) (*model.Report, error) {
	w.report(job.ID, 15, "fetching filings")
	filings, err := w.source.Fetch(ctx, job.Ticker)
	if err != nil {
		return nil, fmt.Errorf("filing fetch failed: %w", err)
	}
	newer, older := filings[0], filings[1]

	w.report(job.ID, 30, "comparing sections")
	diff := w.differ.Compare(older.Sections, newer.Sections)

	w.report(job.ID, 50, "summarizing changes")
	summaries, err := w.summarizer.Summarize(ctx, model.SummaryRequest{
		Ticker:      job.Ticker,
		CompanyName: newer.CompanyName,
		OldDate:     older.FilingDate,
		NewDate:     newer.FilingDate,
		Diff:        diff,
	})
	if err != nil {
		return nil, fmt.Errorf("summarization failed: %w", err)
	}

	w.report(job.ID, 80, "validating quality")
	verdict := quality.Validate(filings, diff, summaries.Summaries)

	report := &model.Report{
		ID:                uuid.New().String(),
		AccountID:         job.AccountID,
		Ticker:            job.Ticker,
		CompanyName:       newer.CompanyName,
		NewerFilingDate:   newer.FilingDate,
		OlderFilingDate:   older.FilingDate,
		NewerAccession:    newer.Accession,
		OlderAccession:    older.Accession,
		SectionsExtracted: newer.SectionNames(),
		ExtractionIssues:  verdict.Issues,
		Summaries:         summaries.Summaries,
		TokensConsumed:    summaries.TotalTokens,
		CostUSD:           summaries.TotalCost,
		GenerationSeconds: int(time.Since(started).Seconds()),
		ExtractionSuccess: verdict.IsValid,
		CreatedAt:         time.Now().UTC(),
	}

	w.report(job.ID, 90, "recording outcome")
	if err := w.storage.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	w.settle(ctx, job, report, verdict, filings)

	if err := w.storage.UpsertCompanyStatus(ctx, job.Ticker, model.ExtractionWorking); err != nil {
		slog.Warn("Failed to update company status", "ticker", job.Ticker, "error", err)
	}

	return report, nil
}

// settle charges the account for the finished run and, when the quality gate
// rejected it, immediately refunds and records the quality error log. The
// charge happens here, after the pipeline, so hard failures never touch the
// ledger at all. A failed debit is logged and the report delivered anyway:
// losing one token of revenue is better than withholding finished work.
func (w *Worker) settle(ctx context.Context, job model.Job, report *model.Report, verdict quality.Result, filings []model.Filing) {
	debited := true
	description := fmt.Sprintf("Report for %s", job.Ticker)
	if err := w.storage.DebitAccount(ctx, job.AccountID, description, report.ID); err != nil {
		debited = false
		slog.Error("Failed to debit account for completed report",
			"account_id", job.AccountID,
			"report_id", report.ID,
			"error", err)
	}

	if verdict.IsValid {
		return
	}

	report.Refunded = true
	newer := filings[0]
	entry := &model.ErrorLog{
		Ticker:            job.Ticker,
		AccountID:         job.AccountID,
		ErrorType:         model.ErrorTypeQualityRefund,
		Message:           fmt.Sprintf("Quality check failed: %s", joinIssues(verdict.Issues)),
		FilingURL:         newer.FilingURL,
		NewerFilingDate:   newer.FilingDate,
		OlderFilingDate:   filings[1].FilingDate,
		SectionsAttempted: quality.RequiredSections,
		SectionsSucceeded: newer.SectionNames(),
		WordCounts:        newer.WordCounts(),
	}
	if err := w.storage.SaveErrorLog(ctx, entry); err != nil {
		slog.Error("Failed to save quality error log", "ticker", job.Ticker, "error", err)
	}

	if !debited {
		return
	}
	if err := w.storage.RefundReport(ctx, job.AccountID, report.ID, "Quality check failed"); err != nil {
		slog.Error("Failed to refund report",
			"account_id", job.AccountID,
			"report_id", report.ID,
			"error", err)
	}
}

// fail records a hard pipeline failure. No report exists and the account was
// never charged, so there is nothing to refund.
func (w *Worker) fail(ctx context.Context, job model.Job, runErr error, logger *slog.Logger) {
	logger.Error("Report job failed", "error", runErr)

	// The job context may already be dead; give the bookkeeping its own.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	entry := &model.ErrorLog{
		Ticker:    job.Ticker,
		AccountID: job.AccountID,
		ErrorType: classify(runErr),
		Message:   runErr.Error(),
	}
	if err := w.storage.SaveErrorLog(ctx, entry); err != nil {
		logger.Error("Failed to save error log", "error", err)
	}

	if err := w.storage.UpsertCompanyStatus(ctx, job.Ticker, model.ExtractionBroken); err != nil {
		logger.Warn("Failed to update company status", "error", err)
	}

	w.notify(ctx, job, model.CallbackPayload{
		JobID:  job.ID,
		Status: string(model.JobFailed),
		Error:  runErr.Error(),
	}, logger)
}

// notify delivers the single terminal callback. Delivery failure is logged
// and swallowed; the durable outcome is already committed.
func (w *Worker) notify(ctx context.Context, job model.Job, payload model.CallbackPayload, logger *slog.Logger) {
	if job.CallbackURL == "" || w.callbacks == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if err := w.callbacks.Send(ctx, job.CallbackURL, payload); err != nil {
		logger.Warn("Callback delivery failed", "error", err)
	}
}

func (w *Worker) report(jobID string, progress int, step string) {
	if w.progress != nil {
		w.progress(jobID, progress, step)
	}
}

func classify(err error) string {
	if errors.Is(err, common.ErrWorkerTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorTypeWorkerTimeout
	}
	return model.ErrorTypeExtractionFailed
}

func joinIssues(issues []string) string {
	if len(issues) == 0 {
		return "unknown"
	}
	out := issues[0]
	for _, issue := range issues[1:] {
		out += "; " + issue
	}
	return out
}
