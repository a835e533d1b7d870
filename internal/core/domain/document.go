package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// IngestionStatus tracks where a document sits in its ingestion lifecycle.
type IngestionStatus string

const (
	// StatusPending means the document has been sighted but never ingested.
	StatusPending IngestionStatus = "pending"

	// StatusProcessing means an ingestion pass is currently working on it.
	StatusProcessing IngestionStatus = "processing"

	// StatusCompleted means the vector store exactly reflects the document.
	StatusCompleted IngestionStatus = "completed"

	// StatusFailed means the last pass failed; the document will be retried.
	StatusFailed IngestionStatus = "failed"

	// StatusPermanentlyFailed means the retry ceiling was hit.
	// The document is not retried again until manually reset.
	StatusPermanentlyFailed IngestionStatus = "permanently_failed"
)

// SourceType identifies where a candidate document came from.
type SourceType string

const (
	// SourceLibraryFile is a file in the managed document library.
	SourceLibraryFile SourceType = "library_file"

	// SourceURL is an external web page from the URL list.
	SourceURL SourceType = "url"
)

// DocumentState is the persisted ingestion record for one logical document.
// It is the single source of truth for what the vector store currently
// holds for that document.
type DocumentState struct {
	// DocumentID is derived deterministically from (title, url).
	DocumentID string

	// ContentHash is a SHA-256 digest of the concatenated section texts,
	// in window order.
	ContentHash []byte

	LastProcessedAt     time.Time
	LastContentUpdateAt time.Time

	// LastSeenAt is touched on every run that considers the document,
	// whether or not it needed processing. Enables external housekeeping
	// to detect documents that vanished from the source.
	LastSeenAt time.Time

	SourceType SourceType
	FileName   string
	URL        string

	// VectorIDs is the ordered set of vector-store keys currently
	// representing this document. After a completed pass it reflects
	// exactly the entries that exist; during failed states it keeps
	// pointing at the last known-good set.
	VectorIDs []string

	Namespace string
	Status    IngestionStatus

	// RetryCount is the number of consecutive failed passes.
	RetryCount int

	SectionsTotal     int
	SectionsProcessed int

	// ErrorMessage holds the most recent per-section error summary.
	ErrorMessage string
}

// Candidate is a document offered by the content source for this run.
type Candidate struct {
	DocumentID   string
	SourceType   SourceType
	SourceURI    string
	FileName     string
	DownloadURL  string
	LastModified time.Time // zero for URL candidates

	// ScrapedText caches the page text fetched during change detection,
	// so URL candidates are not scraped twice in one run.
	ScrapedText string
}

// Section is one normalised text window of a document.
type Section struct {
	SectionID   string
	Text        string
	WindowIndex int
	SectionHash string
}

// ProcessedDocument is a document after extraction and chunking,
// ready for reconciliation against the vector store.
type ProcessedDocument struct {
	DocumentID string
	SourceType SourceType
	SourceURI  string
	FileName   string
	Sections   []Section
	Errors     []string
}

// DocumentID derives a stable identifier from a document's title and URL:
// the first 128 bits of SHA-256(title+url), formatted as a UUID. The same
// inputs always produce the same ID across runs and processes.
func DocumentID(title, url string) string {
	sum := sha256.Sum256([]byte(title + url))
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		// Unreachable: the slice is always 16 bytes.
		panic(err)
	}
	return id.String()
}

// HashText returns the SHA-256 digest of text.
func HashText(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return sum[:]
}

// HashTextHex returns the SHA-256 digest of text as a hex string.
func HashTextHex(text string) string {
	return hex.EncodeToString(HashText(text))
}

// ContentHash computes the document-level hash over the concatenation of
// all section texts in window order. Order is significant: unchanged input
// must hash identically across runs.
func ContentHash(sections []Section) []byte {
	h := sha256.New()
	for _, s := range sections {
		h.Write([]byte(s.Text))
	}
	return h.Sum(nil)
}
