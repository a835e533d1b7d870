package domain

import (
	"math"
	"time"
)

// RunStatus classifies the overall outcome of an ingestion pass.
type RunStatus string

const (
	// RunCompleted means the pass ran to the end. Per-document failures
	// may still be present in the error list.
	RunCompleted RunStatus = "completed"

	// RunFailed means a fatal error aborted the pass.
	RunFailed RunStatus = "failed"

	// RunLocked means another pass held the run lock; nothing was done.
	RunLocked RunStatus = "locked"
)

// Error type tags for RunError entries. These mirror the failure taxonomy:
// per-document errors never abort a run, fatal errors do.
const (
	ErrorContentFetch     = "content_fetch_error"
	ErrorScrape           = "scrape_error"
	ErrorProcessing       = "processing_error"
	ErrorPartialIngestion = "partial_ingestion_failure"
	ErrorTotalIngestion   = "total_ingestion_failure"
	ErrorDatabase         = "database_error"
	ErrorFatal            = "fatal_error"
)

// RunError is one entry in a run's error list.
type RunError struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id,omitempty"`
	Message    string `json:"message"`
}

// RunResult summarises one ingestion pass.
type RunResult struct {
	Status             RunStatus  `json:"status"`
	RunID              string     `json:"run_id"`
	DocumentsProcessed int        `json:"documents_processed"`
	SectionsIngested   int        `json:"sections_ingested"`
	DocumentsSkipped   int        `json:"documents_skipped"`
	DocumentsFailed    int        `json:"documents_failed"`
	ProcessingTime     float64    `json:"processing_time_seconds"`
	Errors             []RunError `json:"errors"`
	DryRun             bool       `json:"dry_run"`

	// WouldProcess lists the candidate document IDs a dry run would have
	// processed. Empty for live runs.
	WouldProcess []string `json:"would_process,omitempty"`
}

// NewRunID builds a run identifier like "ingest_2026-08-28T12-00-00Z".
// The prefix varies by outcome ("ingest", "ingest_dry", "ingest_failed").
func NewRunID(prefix string, t time.Time) string {
	return prefix + "_" + t.UTC().Format("2006-01-02T15-04-05Z")
}

// RoundSeconds converts a duration to seconds rounded to two decimals,
// the precision reported in run results.
func RoundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
