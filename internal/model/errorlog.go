package model

import "time"

// ErrorLogStatus is the operator-facing resolution workflow state.
type ErrorLogStatus string

// Error log workflow states.
const (
	ErrorOpen          ErrorLogStatus = "open"
	ErrorInvestigating ErrorLogStatus = "investigating"
	ErrorResolved      ErrorLogStatus = "resolved"
)

// Error classifications written by the worker.
const (
	ErrorTypeExtractionFailed = "extraction_failed"
	ErrorTypeQualityRefund    = "quality_refund"
	ErrorTypeWorkerTimeout    = "worker_timeout"
)

// ErrorLog records an unrecoverable pipeline failure or a quality refund so
// operators can track which entities break and why.
type ErrorLog struct {
	CreatedAt         time.Time
	NewerFilingDate   time.Time
	OlderFilingDate   time.Time
	WordCounts        map[string]int
	ID                string
	AccountID         string
	Ticker            string
	ErrorType         string
	Message           string
	FilingURL         string
	Status            ErrorLogStatus
	SectionsAttempted []string
	SectionsSucceeded []string
	SectionsFailed    []string
}
