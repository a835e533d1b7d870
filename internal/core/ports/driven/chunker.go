package driven

import (
	"context"

	"github.com/custodia-labs/ragsync/internal/core/domain"
)

// Chunker turns a raw document text into an ordered list of normalised
// sections. Section order must be stable across runs for unchanged input.
type Chunker interface {
	Chunk(ctx context.Context, documentID, text string) ([]domain.Section, error)
}
