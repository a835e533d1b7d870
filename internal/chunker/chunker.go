// Package chunker splits raw document text into overlapping token windows
// and runs each window through the normalisation collaborator, producing
// an ordered, deduplicated list of sections.
package chunker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// DefaultWindowSize is the default window length in tokens.
const DefaultWindowSize = 25000

// DefaultOverlap is the default number of tokens each window re-reads
// from the end of the previous one, preserving context across boundaries.
const DefaultOverlap = 8000

// DefaultMinSectionLength is the minimum character length of a section
// after normalisation; anything shorter is treated as noise.
const DefaultMinSectionLength = 30

var whitespaceRE = regexp.MustCompile(`\s+`)

// Ensure Chunker implements the port.
var _ driven.Chunker = (*Chunker)(nil)

// Chunker produces normalised sections from raw text.
type Chunker struct {
	normaliser       driven.Normaliser
	windowSize       int
	overlap          int
	minSectionLength int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithWindowSize sets the window size in tokens.
func WithWindowSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.windowSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in tokens.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMinSectionLength sets the minimum section length in characters.
func WithMinSectionLength(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minSectionLength = n
		}
	}
}

// New creates a chunker that normalises windows through n.
func New(n driven.Normaliser, opts ...Option) *Chunker {
	c := &Chunker{
		normaliser:       n,
		windowSize:       DefaultWindowSize,
		overlap:          DefaultOverlap,
		minSectionLength: DefaultMinSectionLength,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave room for the window to advance.
	if c.overlap >= c.windowSize {
		c.overlap = c.windowSize / 4
	}

	return c
}

// Chunk splits text into overlapping token windows, normalises each one,
// and returns the surviving sections in window order. A failed
// normalisation degrades the window to its own raw text rather than
// dropping it, so a transient collaborator failure cannot silently delete
// content.
func (c *Chunker) Chunk(ctx context.Context, documentID, text string) ([]domain.Section, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	windows := c.windows(tokens)
	logger.Debug("chunking %s: %d tokens, %d windows", documentID, len(tokens), len(windows))

	texts := make([]string, 0, len(windows))
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		normalised, err := c.normaliser.Normalise(ctx, w)
		if err != nil {
			logger.Warn("normalise window %d of %s failed, keeping raw text: %v", i, documentID, err)
			normalised = w
		}
		texts = append(texts, normalised)
	}

	return c.assemble(documentID, texts), nil
}

// windows slices tokens into consecutive windows of windowSize tokens.
// After the first, each window starts overlap tokens before the end of the
// previous one; the final window is truncated, never padded.
func (c *Chunker) windows(tokens []string) []string {
	var windows []string

	start := 0
	for start < len(tokens) {
		end := start + c.windowSize
		if end > len(tokens) {
			end = len(tokens)
		}

		windows = append(windows, strings.Join(tokens[start:end], " "))

		if end >= len(tokens) {
			break
		}
		start = end - c.overlap
	}

	return windows
}

// assemble deduplicates window texts and assigns section identities.
// Comparison normalises whitespace and case; exact duplicates and
// too-short sections are dropped.
func (c *Chunker) assemble(documentID string, texts []string) []domain.Section {
	seen := make(map[string]struct{}, len(texts))
	sections := make([]domain.Section, 0, len(texts))

	for i, text := range texts {
		if len(strings.TrimSpace(text)) < c.minSectionLength {
			continue
		}

		key := whitespaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		sections = append(sections, domain.Section{
			SectionID:   fmt.Sprintf("%s_s%03d", documentID, len(sections)),
			Text:        text,
			WindowIndex: i,
			SectionHash: domain.HashTextHex(text),
		})
	}

	return sections
}
