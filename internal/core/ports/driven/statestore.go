package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
)

// StateStore persists per-document ingestion state. One row per logical
// document; rows are created on first sighting and never hard-deleted by
// the core.
type StateStore interface {
	// Get retrieves state by document ID.
	// Returns domain.ErrNotFound if the document has never been seen.
	Get(ctx context.Context, documentID string) (*domain.DocumentState, error)

	// Save creates or updates a state row.
	Save(ctx context.Context, state *domain.DocumentState) error

	// TouchLastSeen updates last_seen_at for an existing row. A missing
	// row is not an error: the document simply has no state yet.
	TouchLastSeen(ctx context.Context, documentID string, seenAt time.Time) error

	// List returns all state rows.
	List(ctx context.Context) ([]domain.DocumentState, error)

	// ResetPermanentFailures moves permanently_failed documents back to
	// pending with a zero retry count, re-enabling automatic retries.
	// Returns the number of rows reset.
	ResetPermanentFailures(ctx context.Context) (int, error)
}
