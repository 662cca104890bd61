package model

import "time"

// JobStatus tracks a job through its state machine.
// Terminal states (completed, failed) are final.
type JobStatus string

// Job states.
const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is the transient correlation token for one report-generation run.
// It is never persisted: the durable outcome is the Report row (or an
// ErrorLog row) plus the callback payload, so a crash mid-job leaves no
// job state behind.
type Job struct {
	StartedAt   time.Time
	ID          string
	AccountID   string
	Ticker      string
	CallbackURL string
	Status      JobStatus
	CurrentStep string
	ReportID    string
	Error       string
	Progress    int
}

// CallbackPayload is posted from the worker back to the orchestrator when a
// job reaches a terminal state. Delivery is best-effort and the receiving
// side must treat it as informational only.
type CallbackPayload struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	ReportID string `json:"report_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Refunded bool   `json:"refunded,omitempty"`
}
