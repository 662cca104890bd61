package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/ledger"
	"github.com/tenkdelta/tenkdelta/internal/model"
	"github.com/tenkdelta/tenkdelta/internal/testutil"
)

// recordingDispatcher captures dispatched jobs without running anything.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []model.Job
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job model.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *testutil.TestDB, *recordingDispatcher) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	dispatcher := &recordingDispatcher{}
	orch := New(db.Storage, ledger.New(db.Storage), dispatcher, Config{})
	return orch, db, dispatcher
}

func TestRequestReport_CacheHitIsChargedAndServed(t *testing.T) {
	orch, db, dispatcher := newTestOrchestrator(t)
	ctx := context.Background()

	ownerID := db.SeedAccount(0)
	db.SeedReport(ownerID, "AAPL", time.Now().UTC().Add(-24*time.Hour))
	requesterID := db.SeedAccount(1)

	outcome, err := orch.RequestReport(ctx, requesterID, "AAPL")
	require.NoError(t, err)

	assert.True(t, outcome.Cached)
	assert.NotEmpty(t, outcome.ReportID)
	assert.Equal(t, model.JobCompleted, outcome.Status)
	assert.Zero(t, dispatcher.count(), "cache hit must not dispatch a job")

	// Balance 1 -> 0
	account, err := db.Storage.GetAccount(ctx, requesterID)
	require.NoError(t, err)
	assert.Equal(t, 0, account.TokensRemaining)

	// Clone is owned by the requester
	clone, err := db.Storage.GetReportByID(ctx, outcome.ReportID)
	require.NoError(t, err)
	assert.Equal(t, requesterID, clone.AccountID)
}

func TestRequestReport_RefundedSourceIsFree(t *testing.T) {
	orch, db, _ := newTestOrchestrator(t)
	ctx := context.Background()

	ownerID := db.SeedAccount(0)
	source := db.SeedReport(ownerID, "AAPL", time.Now().UTC().Add(-time.Hour))
	source.Refunded = true
	source.ID = source.ID + "-refunded"
	source.CreatedAt = time.Now().UTC()
	require.NoError(t, db.Storage.SaveReport(ctx, source))

	// Zero balance, yet the flawed cached report is served free
	brokeID := db.SeedAccount(0)
	outcome, err := orch.RequestReport(ctx, brokeID, "AAPL")
	require.NoError(t, err)
	assert.True(t, outcome.Cached)

	clone, err := db.Storage.GetReportByID(ctx, outcome.ReportID)
	require.NoError(t, err)
	assert.True(t, clone.Refunded, "clone must carry the refunded flag")

	account, err := db.Storage.GetAccount(ctx, brokeID)
	require.NoError(t, err)
	assert.Equal(t, 0, account.TokensRemaining)
}

func TestRequestReport_CacheMissDispatches(t *testing.T) {
	orch, db, dispatcher := newTestOrchestrator(t)
	ctx := context.Background()

	accountID := db.SeedAccount(2)

	outcome, err := orch.RequestReport(ctx, accountID, "msft")
	require.NoError(t, err)

	assert.False(t, outcome.Cached)
	assert.NotEmpty(t, outcome.JobID)
	assert.Equal(t, model.JobQueued, outcome.Status)
	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, "MSFT", dispatcher.jobs[0].Ticker, "ticker must be normalized before dispatch")

	// The dispatch is a pre-flight check only; no charge yet
	account, err := db.Storage.GetAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, account.TokensRemaining)

	job, ok := orch.JobStatus(outcome.JobID)
	require.True(t, ok)
	assert.Equal(t, model.JobQueued, job.Status)
	assert.Equal(t, 1, orch.ActiveJobs())
}

func TestRequestReport_ConcurrentCacheMissBothDispatch(t *testing.T) {
	orch, db, dispatcher := newTestOrchestrator(t)

	firstID := db.SeedAccount(1)
	secondID := db.SeedAccount(1)

	// Both requests race past the cache lookup for the same fresh ticker.
	// Each must get its own job rather than block on the other's run.
	var wg sync.WaitGroup
	outcomes := make(chan RequestOutcome, 2)
	for _, accountID := range []string{firstID, secondID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			outcome, err := orch.RequestReport(context.Background(), id, "NVDA")
			assert.NoError(t, err)
			outcomes <- outcome
		}(accountID)
	}
	wg.Wait()
	close(outcomes)

	jobIDs := make(map[string]bool)
	for outcome := range outcomes {
		assert.False(t, outcome.Cached)
		jobIDs[outcome.JobID] = true
	}
	assert.Len(t, jobIDs, 2, "each request mints its own job")
	assert.Equal(t, 2, dispatcher.count(), "both cache misses must dispatch")
	assert.Equal(t, 2, orch.ActiveJobs())
}

func TestRequestReport_InsufficientBalance(t *testing.T) {
	orch, db, dispatcher := newTestOrchestrator(t)

	accountID := db.SeedAccount(0)

	_, err := orch.RequestReport(context.Background(), accountID, "MSFT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInsufficientBalance))
	assert.Zero(t, dispatcher.count())
}

func TestRequestReport_StaleReportDoesNotServe(t *testing.T) {
	orch, db, dispatcher := newTestOrchestrator(t)

	ownerID := db.SeedAccount(0)
	db.SeedReport(ownerID, "AAPL", time.Now().UTC().Add(-45*24*time.Hour))
	requesterID := db.SeedAccount(1)

	outcome, err := orch.RequestReport(context.Background(), requesterID, "AAPL")
	require.NoError(t, err)

	assert.False(t, outcome.Cached, "a report outside the window is not a cache hit")
	assert.Equal(t, 1, dispatcher.count())
}

func TestRequestReport_InvalidTicker(t *testing.T) {
	orch, db, _ := newTestOrchestrator(t)
	accountID := db.SeedAccount(1)

	for _, ticker := range []string{"", "TOOLONGG", "123", "AA PL"} {
		_, err := orch.RequestReport(context.Background(), accountID, ticker)
		assert.True(t, errors.Is(err, common.ErrEntityNotFound), "ticker %q", ticker)
	}
}

func TestRequestReport_UnknownAccount(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)

	_, err := orch.RequestReport(context.Background(), "no-such-account", "AAPL")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestHandleCallback_Idempotent(t *testing.T) {
	orch, db, _ := newTestOrchestrator(t)

	accountID := db.SeedAccount(1)
	outcome, err := orch.RequestReport(context.Background(), accountID, "AAPL")
	require.NoError(t, err)

	payload := model.CallbackPayload{
		JobID:    outcome.JobID,
		Status:   string(model.JobCompleted),
		ReportID: "report-1",
	}
	orch.HandleCallback(payload)

	job, ok := orch.JobStatus(outcome.JobID)
	require.True(t, ok)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, "report-1", job.ReportID)
	assert.Zero(t, orch.ActiveJobs())

	// A duplicate, contradictory callback must not change the record
	orch.HandleCallback(model.CallbackPayload{
		JobID:  outcome.JobID,
		Status: string(model.JobFailed),
		Error:  "late duplicate",
	})

	job, _ = orch.JobStatus(outcome.JobID)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Empty(t, job.Error)
}

func TestHandleCallback_UnknownJobIsIgnored(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)

	// Must not panic or create state
	orch.HandleCallback(model.CallbackPayload{JobID: "ghost", Status: "completed"})
	_, ok := orch.JobStatus("ghost")
	assert.False(t, ok)
}

func TestUpdateProgress(t *testing.T) {
	orch, db, _ := newTestOrchestrator(t)

	accountID := db.SeedAccount(1)
	outcome, err := orch.RequestReport(context.Background(), accountID, "AAPL")
	require.NoError(t, err)

	orch.UpdateProgress(outcome.JobID, 50, "summarizing changes")

	job, ok := orch.JobStatus(outcome.JobID)
	require.True(t, ok)
	assert.Equal(t, model.JobProcessing, job.Status)
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, "summarizing changes", job.CurrentStep)

	// Progress after a terminal callback is dropped
	orch.HandleCallback(model.CallbackPayload{JobID: outcome.JobID, Status: string(model.JobCompleted)})
	orch.UpdateProgress(outcome.JobID, 80, "late marker")

	job, _ = orch.JobStatus(outcome.JobID)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestRequestReport_DispatchFailureRemovesJob(t *testing.T) {
	orch, db, dispatcher := newTestOrchestrator(t)
	dispatcher.err = errors.New("queue full")

	accountID := db.SeedAccount(1)
	_, err := orch.RequestReport(context.Background(), accountID, "AAPL")
	require.Error(t, err)
	assert.Zero(t, orch.ActiveJobs())
}
