package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
	"github.com/custodia-labs/ragsync/internal/core/ports/driving"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// DefaultLockTTL bounds how long a crashed pass can block its successors.
const DefaultLockTTL = time.Hour

// DefaultLockKey serialises all ingestion passes of one deployment.
const DefaultLockKey = "rag_ingestion"

// OrchestratorConfig carries the run-level tunables.
type OrchestratorConfig struct {
	LockKey string
	LockTTL time.Duration

	// Owner identifies this process in the lock row. Defaults to host:pid.
	Owner string

	MaxRetries       int
	MinContentLength int
	Namespace        string
}

// Orchestrator coordinates a full ingestion pass: lock, fetch, detect,
// process, reconcile, report. It is the single implementation of the
// driving IngestionRunner port.
type Orchestrator struct {
	locks   driven.LockStore
	source  driven.ContentSource
	detect  *ChangeDetector
	process *Pipeline
	ingest  *Reconciler

	lockKey string
	lockTTL time.Duration
	owner   string
}

var _ driving.IngestionRunner = (*Orchestrator)(nil)

// NewOrchestrator wires the services for a deployment.
func NewOrchestrator(
	locks driven.LockStore,
	states driven.StateStore,
	source driven.ContentSource,
	scraper driven.Scraper,
	chunker driven.Chunker,
	vectors driven.VectorStore,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.Owner == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown"
		}
		cfg.Owner = fmt.Sprintf("%s:%d", host, os.Getpid())
	}

	return &Orchestrator{
		locks:   locks,
		source:  source,
		detect:  NewChangeDetector(states, scraper, cfg.MinContentLength),
		process: NewPipeline(source, chunker),
		ingest:  NewReconciler(states, vectors, cfg.Namespace, cfg.MaxRetries),
		lockKey: cfg.LockKey,
		lockTTL: cfg.LockTTL,
		owner:   cfg.Owner,
	}
}

// Run executes one ingestion pass. Every outcome is expressed in the
// returned RunResult; Run itself never panics or returns an error.
func (o *Orchestrator) Run(ctx context.Context, opts driving.RunOptions) domain.RunResult {
	start := time.Now()

	lock, err := o.locks.Acquire(ctx, o.lockKey, o.owner, o.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			logger.Warn("ingestion already running: %v", err)
			return domain.RunResult{
				Status:         domain.RunLocked,
				RunID:          domain.NewRunID("ingest_locked", start),
				ProcessingTime: domain.RoundSeconds(time.Since(start)),
				Errors: []domain.RunError{{
					Type:    domain.ErrorFatal,
					Message: err.Error(),
				}},
				DryRun: opts.DryRun,
			}
		}
		return o.fatal(start, opts, fmt.Errorf("acquire run lock: %w", err))
	}
	defer func() {
		if err := o.locks.Release(context.WithoutCancel(ctx), lock); err != nil {
			logger.Warn("release run lock: %v", err)
		}
	}()

	return o.runLocked(ctx, opts, start)
}

// runLocked is the body of the pass, executed under the run lock. A panic
// anywhere inside becomes a failed result so the deferred lock release
// still happens and callers still get JSON out.
func (o *Orchestrator) runLocked(ctx context.Context, opts driving.RunOptions, start time.Time) (result domain.RunResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion pass panicked: %v", r)
			result = o.fatal(start, opts, fmt.Errorf("panic: %v", r))
		}
	}()

	result = domain.RunResult{
		Status: domain.RunCompleted,
		RunID:  domain.NewRunID("ingest", start),
		DryRun: opts.DryRun,
		Errors: []domain.RunError{},
	}

	files, urls, err := o.source.Fetch(ctx, opts.ModifiedSince)
	if err != nil {
		// Degrade to an empty manifest: URL-side work may still be
		// possible in other configurations, and the error is visible in
		// the result either way.
		logger.Error("fetch content manifest: %v", err)
		result.Errors = append(result.Errors, domain.RunError{
			Type:    domain.ErrorContentFetch,
			Message: err.Error(),
		})
	}
	logger.Info("considering %d library files and %d URLs", len(files), len(urls))

	candidates, skipped, detectErrs := o.detect.Detect(ctx, files, urls, opts)
	result.Errors = append(result.Errors, detectErrs...)
	result.DocumentsSkipped = skipped

	if len(candidates) == 0 {
		logger.Info("nothing to process")
		result.ProcessingTime = domain.RoundSeconds(time.Since(start))
		return result
	}

	if opts.DryRun {
		result.RunID = domain.NewRunID("ingest_dry", start)
		for _, c := range candidates {
			result.WouldProcess = append(result.WouldProcess, c.DocumentID)
		}
		result.ProcessingTime = domain.RoundSeconds(time.Since(start))
		logger.Info("dry run: %d documents would be processed", len(candidates))
		return result
	}

	processed, processErrs := o.process.Process(ctx, candidates)
	result.Errors = append(result.Errors, processErrs...)
	result.DocumentsFailed += len(processErrs)

	for _, doc := range processed {
		outcome := o.ingest.Reconcile(ctx, doc)
		result.SectionsIngested += outcome.SectionsIngested
		result.Errors = append(result.Errors, outcome.Errors...)
		switch {
		case outcome.Skipped:
			result.DocumentsSkipped++
		case outcome.Failed():
			result.DocumentsFailed++
		default:
			result.DocumentsProcessed++
		}
	}

	result.ProcessingTime = domain.RoundSeconds(time.Since(start))
	logger.Info("pass complete: %d processed, %d skipped, %d failed, %d sections in %.2fs",
		result.DocumentsProcessed, result.DocumentsSkipped, result.DocumentsFailed,
		result.SectionsIngested, result.ProcessingTime)
	return result
}

func (o *Orchestrator) fatal(start time.Time, opts driving.RunOptions, err error) domain.RunResult {
	return domain.RunResult{
		Status:         domain.RunFailed,
		RunID:          domain.NewRunID("ingest_failed", start),
		ProcessingTime: domain.RoundSeconds(time.Since(start)),
		Errors: []domain.RunError{{
			Type:    domain.ErrorFatal,
			Message: err.Error(),
		}},
		DryRun: opts.DryRun,
	}
}
