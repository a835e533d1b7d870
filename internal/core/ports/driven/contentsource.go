package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
)

// ContentSource fetches candidate documents from the managed library.
// The low-level paging and auth protocol belongs to the adapter; the core
// consumes only the output shape.
type ContentSource interface {
	// Fetch returns the library file manifest (filtered to files modified
	// after modifiedSince, when non-zero) plus the external URL list.
	// The URL-list file itself is always fetched, bypassing the filter,
	// and never appears among the file candidates.
	Fetch(ctx context.Context, modifiedSince time.Time) (files []domain.Candidate, urls []string, err error)

	// Download fetches a file candidate's content and extracts its text.
	// Returns domain.ErrUnsupportedType for file types without an
	// extractor.
	Download(ctx context.Context, candidate domain.Candidate) (string, error)
}

// Scraper fetches an external web page and reduces it to plain text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}
