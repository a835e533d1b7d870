// Package driving provides interfaces for primary adapters (CLI, HTTP)
// to drive the core services.
package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
)

// RunOptions configures one ingestion pass.
type RunOptions struct {
	// ForceReprocess bypasses change detection: every candidate is
	// treated as needing processing.
	ForceReprocess bool

	// DocumentIDs, when non-empty, restricts the pass to these documents.
	DocumentIDs []string

	// ModifiedSince, when non-zero, narrows the library manifest to files
	// modified after this instant. The external URL list is always
	// fetched regardless.
	ModifiedSince time.Time

	// DryRun reports what would be processed without side effects.
	DryRun bool
}

// IngestionRunner executes ingestion passes. A run never returns an
// unhandled fault: every outcome, including fatal errors and a held lock,
// is expressed in the RunResult.
type IngestionRunner interface {
	Run(ctx context.Context, opts RunOptions) domain.RunResult
}
