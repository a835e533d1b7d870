package driven

import "context"

// VectorRef identifies a stored vector-store entry.
type VectorRef struct {
	VectorID  string
	Namespace string
}

// VectorStore is the remote vector database collaborator. Both operations
// are subject to transient failure and the core does not retry them within
// a run. A failed Store simply contributes no vector ID for that section,
// and cross-run retry is driven by document state.
type VectorStore interface {
	// Store writes one section and returns its vector-store key.
	Store(ctx context.Context, title, text string, metadata map[string]string) (VectorRef, error)

	// Delete removes a stale entry.
	Delete(ctx context.Context, vectorID, namespace string) error
}
