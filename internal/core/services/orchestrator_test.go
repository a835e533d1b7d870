package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driving"
)

func newTestOrchestrator(
	locks *mockLockStore,
	states *mockStateStore,
	source *mockContentSource,
	scraper *mockScraper,
	vectors *mockVectorStore,
) *Orchestrator {
	return NewOrchestrator(locks, states, source, scraper, &mockChunker{}, vectors,
		OrchestratorConfig{
			LockKey:   "test_lock",
			LockTTL:   time.Minute,
			Owner:     "test:1",
			Namespace: "docs",
		})
}

func TestRun_NothingToProcess(t *testing.T) {
	locks := &mockLockStore{}
	o := newTestOrchestrator(locks, newMockStateStore(), &mockContentSource{},
		&mockScraper{}, newMockVectorStore())

	result := o.Run(context.Background(), driving.RunOptions{})

	assert.Equal(t, domain.RunCompleted, result.Status)
	assert.Zero(t, result.DocumentsProcessed)
	assert.Empty(t, result.Errors)
	assert.Contains(t, result.RunID, "ingest_")
	// The lock was taken and released.
	assert.Equal(t, 1, locks.released)
	assert.Nil(t, locks.held)
}

func TestRun_EndToEndLibraryFile(t *testing.T) {
	source := &mockContentSource{
		files:   []domain.Candidate{fileCandidate("guide.md", time.Now())},
		content: map[string]string{"guide.md": "the full text of the guide"},
	}
	states := newMockStateStore()
	vectors := newMockVectorStore()

	o := newTestOrchestrator(&mockLockStore{}, states, source, &mockScraper{}, vectors)
	result := o.Run(context.Background(), driving.RunOptions{})

	assert.Equal(t, domain.RunCompleted, result.Status)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, 1, result.SectionsIngested)
	assert.Empty(t, result.Errors)
	assert.Len(t, vectors.stored, 1)

	docID := domain.DocumentID("guide.md", "https://library.example.com/guide.md")
	state := states.get(docID)
	require.NotNil(t, state)
	assert.Equal(t, domain.StatusCompleted, state.Status)
}

func TestRun_SecondPassIsIdempotent(t *testing.T) {
	source := &mockContentSource{
		files:   []domain.Candidate{fileCandidate("guide.md", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))},
		content: map[string]string{"guide.md": "the full text of the guide"},
	}
	states := newMockStateStore()
	vectors := newMockVectorStore()

	o := newTestOrchestrator(&mockLockStore{}, states, source, &mockScraper{}, vectors)

	first := o.Run(context.Background(), driving.RunOptions{})
	require.Equal(t, 1, first.DocumentsProcessed)
	storedAfterFirst := len(vectors.stored)

	second := o.Run(context.Background(), driving.RunOptions{})

	assert.Equal(t, domain.RunCompleted, second.Status)
	assert.Zero(t, second.DocumentsProcessed)
	assert.Equal(t, 1, second.DocumentsSkipped)
	assert.Zero(t, second.SectionsIngested)
	assert.Len(t, vectors.stored, storedAfterFirst)
}

func TestRun_LockHeldByAnotherProcess(t *testing.T) {
	locks := &mockLockStore{}
	_, err := locks.Acquire(context.Background(), "test_lock", "other:2", time.Minute)
	require.NoError(t, err)

	states := newMockStateStore()
	o := newTestOrchestrator(locks, states, &mockContentSource{
		files: []domain.Candidate{fileCandidate("guide.md", time.Now())},
	}, &mockScraper{}, newMockVectorStore())

	result := o.Run(context.Background(), driving.RunOptions{})

	assert.Equal(t, domain.RunLocked, result.Status)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "other:2")
	// Nothing was touched.
	assert.Zero(t, states.saveCalls)
	// The foreign lock was not released.
	assert.Equal(t, 0, locks.released)
	assert.NotNil(t, locks.held)
}

func TestRun_DryRunHasNoSideEffects(t *testing.T) {
	source := &mockContentSource{
		files:   []domain.Candidate{fileCandidate("guide.md", time.Now())},
		content: map[string]string{"guide.md": "the full text of the guide"},
	}
	states := newMockStateStore()
	vectors := newMockVectorStore()

	o := newTestOrchestrator(&mockLockStore{}, states, source, &mockScraper{}, vectors)
	result := o.Run(context.Background(), driving.RunOptions{DryRun: true})

	assert.Equal(t, domain.RunCompleted, result.Status)
	assert.True(t, result.DryRun)
	assert.Contains(t, result.RunID, "ingest_dry_")
	require.Len(t, result.WouldProcess, 1)
	assert.Equal(t, domain.DocumentID("guide.md", "https://library.example.com/guide.md"),
		result.WouldProcess[0])
	assert.Empty(t, vectors.stored)
	assert.Zero(t, states.saveCalls)
	// last_seen_at is persistent state too.
	assert.Empty(t, states.touched)
}

func TestRun_FetchFailureDegradesToEmptyManifest(t *testing.T) {
	source := &mockContentSource{fetchErr: errors.New("library unreachable")}

	o := newTestOrchestrator(&mockLockStore{}, newMockStateStore(), source,
		&mockScraper{}, newMockVectorStore())
	result := o.Run(context.Background(), driving.RunOptions{})

	assert.Equal(t, domain.RunCompleted, result.Status)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.ErrorContentFetch, result.Errors[0].Type)
}

func TestRun_PanicBecomesFailedResult(t *testing.T) {
	locks := &mockLockStore{}
	source := &mockContentSource{
		files:   []domain.Candidate{fileCandidate("guide.md", time.Now())},
		content: map[string]string{"guide.md": "text"},
	}
	o := newTestOrchestrator(locks, newMockStateStore(), source,
		&mockScraper{}, newMockVectorStore())
	// A nil chunker makes the pipeline panic once a candidate reaches it.
	o.process = NewPipeline(source, nil)

	result := o.Run(context.Background(), driving.RunOptions{})

	assert.Equal(t, domain.RunFailed, result.Status)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, domain.ErrorFatal, result.Errors[0].Type)
	// The lock is released even after a panic.
	assert.Equal(t, 1, locks.released)
	assert.Nil(t, locks.held)
}

func TestRun_PerDocumentFailureDoesNotAbort(t *testing.T) {
	source := &mockContentSource{
		files: []domain.Candidate{
			fileCandidate("good.md", time.Now()),
			fileCandidate("bad.md", time.Now()),
		},
		content: map[string]string{"good.md": "good content"},
	}

	o := newTestOrchestrator(&mockLockStore{}, newMockStateStore(), source,
		&mockScraper{}, newMockVectorStore())
	result := o.Run(context.Background(), driving.RunOptions{})

	assert.Equal(t, domain.RunCompleted, result.Status)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, 1, result.DocumentsFailed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.ErrorProcessing, result.Errors[0].Type)
}

func TestRun_ProcessingTimeReported(t *testing.T) {
	o := newTestOrchestrator(&mockLockStore{}, newMockStateStore(),
		&mockContentSource{}, &mockScraper{}, newMockVectorStore())

	result := o.Run(context.Background(), driving.RunOptions{})

	assert.GreaterOrEqual(t, result.ProcessingTime, 0.0)
}
