package orchestrator

import (
	"sync"
	"time"

	"github.com/tenkdelta/tenkdelta/internal/model"
)

// jobTable is the in-memory telemetry table for jobs this instance has
// dispatched. Entries are advisory: losing them on restart loses progress
// reporting, never money or reports. Terminal entries stay pollable for a
// retention window and are swept afterwards so the table cannot grow for
// the life of the process.
type jobTable struct {
	mu        sync.RWMutex
	retention time.Duration
	jobs      map[string]jobEntry
}

type jobEntry struct {
	job        model.Job
	finishedAt time.Time
}

func newJobTable(retention time.Duration) *jobTable {
	return &jobTable{
		retention: retention,
		jobs:      make(map[string]jobEntry),
	}
}

func (t *jobTable) put(job model.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.sweepLocked(now)

	entry := jobEntry{job: job}
	if job.Status.Terminal() {
		entry.finishedAt = now
	}
	t.jobs[job.ID] = entry
}

func (t *jobTable) get(id string) (model.Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.jobs[id]
	return entry.job, ok
}

func (t *jobTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

func (t *jobTable) active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	count := 0
	for _, entry := range t.jobs {
		if !entry.job.Status.Terminal() {
			count++
		}
	}
	return count
}

// sweepLocked drops terminal entries older than the retention window.
// Running entries are never swept. Callers must hold the write lock.
func (t *jobTable) sweepLocked(now time.Time) {
	for id, entry := range t.jobs {
		if !entry.finishedAt.IsZero() && now.Sub(entry.finishedAt) > t.retention {
			delete(t.jobs, id)
		}
	}
}
