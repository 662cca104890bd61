package model

import "time"

// ExtractionStatus is the reliability tag for an entity in the directory.
type ExtractionStatus string

// Extraction statuses.
const (
	ExtractionWorking ExtractionStatus = "working"
	ExtractionBroken  ExtractionStatus = "broken"
	ExtractionUnknown ExtractionStatus = "unknown"
)

// Company is read-mostly entity directory data. Name and CIK may be empty
// until a background sync fills them in; the pipeline only needs the ticker
// and the reliability tag.
type Company struct {
	UpdatedAt                time.Time
	LastSuccessfulExtraction time.Time
	Ticker                   string
	Name                     string
	CIK                      string
	ExtractionStatus         ExtractionStatus
	FailureCount             int
}
