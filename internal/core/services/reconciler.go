package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// DefaultMaxRetries is the failed-run ceiling after which a document is
// marked permanently failed and excluded from normal change detection.
const DefaultMaxRetries = 3

// ReconcileOutcome summarises a single document's reconciliation.
type ReconcileOutcome struct {
	DocumentID       string
	Skipped          bool
	SectionsIngested int
	Errors           []domain.RunError
}

// Failed reports whether the document ended the run in a failed state.
func (o ReconcileOutcome) Failed() bool {
	return len(o.Errors) > 0
}

// Reconciler pushes a processed document's sections into the vector store
// and records the outcome in the state store. Stale vectors from the
// previous version are deleted only after a fully successful upload, so a
// partial failure always leaves the prior version intact and queryable.
type Reconciler struct {
	states     driven.StateStore
	vectors    driven.VectorStore
	namespace  string
	maxRetries int
}

// NewReconciler creates a reconciler. maxRetries <= 0 selects the default.
func NewReconciler(states driven.StateStore, vectors driven.VectorStore, namespace string, maxRetries int) *Reconciler {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Reconciler{
		states:     states,
		vectors:    vectors,
		namespace:  namespace,
		maxRetries: maxRetries,
	}
}

// Reconcile ingests one processed document. It never returns an error:
// every failure mode is captured in the outcome so the orchestrator can
// keep the run going.
func (r *Reconciler) Reconcile(ctx context.Context, doc domain.ProcessedDocument) ReconcileOutcome {
	outcome := ReconcileOutcome{DocumentID: doc.DocumentID}

	if len(doc.Sections) == 0 {
		logger.Warn("no sections for %s, skipping", doc.DocumentID)
		outcome.Skipped = true
		return outcome
	}

	state, err := r.loadOrCreateState(ctx, doc)
	if err != nil {
		outcome.Errors = append(outcome.Errors, domain.RunError{
			Type:       domain.ErrorDatabase,
			DocumentID: doc.DocumentID,
			Message:    err.Error(),
		})
		return outcome
	}

	now := time.Now().UTC()
	state.Status = domain.StatusProcessing
	state.ContentHash = domain.ContentHash(doc.Sections)
	state.SectionsTotal = len(doc.Sections)
	state.SectionsProcessed = 0
	state.LastContentUpdateAt = now
	state.ErrorMessage = ""

	if err := r.states.Save(ctx, state); err != nil {
		outcome.Errors = append(outcome.Errors, domain.RunError{
			Type:       domain.ErrorDatabase,
			DocumentID: state.DocumentID,
			Message:    fmt.Sprintf("mark processing: %v", err),
		})
		return outcome
	}

	oldVectorIDs := state.VectorIDs
	newVectorIDs, failed := r.storeSections(ctx, doc)
	outcome.SectionsIngested = len(newVectorIDs)

	switch {
	case failed == 0:
		state.Status = domain.StatusCompleted
		state.RetryCount = 0
		state.VectorIDs = newVectorIDs
		state.LastProcessedAt = time.Now().UTC()
		state.SectionsProcessed = len(newVectorIDs)
		r.deleteStale(ctx, oldVectorIDs, newVectorIDs)
		logger.Info("ingested %s: %d sections", state.DocumentID, len(newVectorIDs))

	case len(newVectorIDs) > 0:
		// Partial failure. The previous version's vectors stay in place
		// and the new partial set is recorded so a later cleanup can
		// remove it.
		state.Status = domain.StatusFailed
		state.RetryCount++
		state.SectionsProcessed = len(newVectorIDs)
		state.ErrorMessage = fmt.Sprintf("%d of %d sections failed to ingest", failed, len(doc.Sections))
		outcome.Errors = append(outcome.Errors, domain.RunError{
			Type:       domain.ErrorPartialIngestion,
			DocumentID: state.DocumentID,
			Message:    state.ErrorMessage,
		})

	default:
		state.Status = domain.StatusFailed
		state.RetryCount++
		state.ErrorMessage = "all sections failed to ingest"
		outcome.Errors = append(outcome.Errors, domain.RunError{
			Type:       domain.ErrorTotalIngestion,
			DocumentID: state.DocumentID,
			Message:    state.ErrorMessage,
		})
	}

	if state.Status == domain.StatusFailed && state.RetryCount >= r.maxRetries {
		logger.Error("document %s failed %d times, marking permanently failed",
			state.DocumentID, state.RetryCount)
		state.Status = domain.StatusPermanentlyFailed
	}

	if err := r.states.Save(ctx, state); err != nil {
		logger.Error("save final state for %s: %v", state.DocumentID, err)
		outcome.Errors = append(outcome.Errors, domain.RunError{
			Type:       domain.ErrorDatabase,
			DocumentID: state.DocumentID,
			Message:    fmt.Sprintf("save final state: %v", err),
		})
	}

	return outcome
}

func (r *Reconciler) loadOrCreateState(ctx context.Context, doc domain.ProcessedDocument) (*domain.DocumentState, error) {
	state, err := r.states.Get(ctx, doc.DocumentID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.DocumentState{
			DocumentID: doc.DocumentID,
			SourceType: doc.SourceType,
			FileName:   doc.FileName,
			URL:        doc.SourceURI,
			Namespace:  r.namespace,
			Status:     domain.StatusPending,
			LastSeenAt: time.Now().UTC(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if state.Namespace == "" {
		state.Namespace = r.namespace
	}
	return state, nil
}

// storeSections uploads sections one at a time, collecting the vector IDs
// of the successes and counting the failures.
func (r *Reconciler) storeSections(ctx context.Context, doc domain.ProcessedDocument) (vectorIDs []string, failed int) {
	for _, section := range doc.Sections {
		metadata := map[string]string{
			"doc_id":       doc.DocumentID,
			"section_id":   section.SectionID,
			"source_type":  string(doc.SourceType),
			"source_uri":   doc.SourceURI,
			"section_hash": section.SectionHash,
		}
		title := doc.FileName
		if title == "" {
			title = doc.SourceURI
		}

		ref, err := r.vectors.Store(ctx, title, section.Text, metadata)
		if err != nil {
			logger.Error("store section %s: %v", section.SectionID, err)
			failed++
			continue
		}
		vectorIDs = append(vectorIDs, ref.VectorID)
	}
	return vectorIDs, failed
}

// deleteStale removes vectors from the previous version that are not part
// of the new set. Deletion failures are logged and ignored: an orphaned
// vector is tolerable, a lost document is not.
func (r *Reconciler) deleteStale(ctx context.Context, oldIDs, newIDs []string) {
	if len(oldIDs) == 0 {
		return
	}
	keep := make(map[string]struct{}, len(newIDs))
	for _, id := range newIDs {
		keep[id] = struct{}{}
	}
	for _, id := range oldIDs {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := r.vectors.Delete(ctx, id, r.namespace); err != nil {
			logger.Warn("delete stale vector %s: %v", id, err)
		}
	}
}
