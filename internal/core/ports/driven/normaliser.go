package driven

import "context"

// Normaliser is the text-normalisation collaborator: an opaque
// normalize(text) -> text function, typically backed by a language model
// instructed to extract and clean, never summarise. It may fail; callers
// degrade to the raw input rather than dropping content.
type Normaliser interface {
	Normalise(ctx context.Context, text string) (string, error)
}
