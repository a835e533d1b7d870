// Package ai provides the text Normaliser adapter backed by an
// OpenAI-compatible chat API.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// DefaultModel is used when the configuration names none.
const DefaultModel = "gpt-4o-mini"

// minLineLength filters model output lines too short to be meaningful
// document content.
const minLineLength = 30

// systemPrompt instructs the model to act as a deterministic cleaner.
// The model must never summarise or paraphrase: retrieval quality depends
// on the stored text matching the source.
const systemPrompt = `You are a text normalisation engine for a document ingestion pipeline.
Clean the text you are given: remove navigation artifacts, boilerplate,
cookie notices, repeated headers and footers, and broken formatting.
Keep ALL substantive content. Do not summarise, paraphrase, reorder or
editorialise. Output each cleaned passage on its own line prefixed with
"EXTRACT: ". Output nothing else.`

// Config holds configuration for the normaliser.
type Config struct {
	// BaseURL is the OpenAI-compatible API root. Empty selects the
	// client library's default.
	BaseURL string

	// Token is the API key. Local services that need none accept any
	// value.
	Token string

	// Model is the chat model to use (default: gpt-4o-mini).
	Model string
}

// Normaliser cleans raw document text through a chat model.
type Normaliser struct {
	client llms.Model
}

// NewNormaliser creates a normaliser.
func NewNormaliser(cfg Config) (*Normaliser, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Token == "" {
		cfg.Token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(cfg.Token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}

	return &Normaliser{client: client}, nil
}

// Normalise sends text through the cleaning prompt and reassembles the
// extracted passages. Callers degrade to the raw input on error.
func (n *Normaliser) Normalise(ctx context.Context, text string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	response, err := n.client.GenerateContent(ctx, content, llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("generating normalised text: %w", err)
	}
	if len(response.Choices) < 1 {
		return "", fmt.Errorf("model returned no choices")
	}

	normalised := parseExtracts(response.Choices[0].Content)
	if normalised == "" {
		return "", fmt.Errorf("model returned no usable content")
	}
	return normalised, nil
}

// parseExtracts collects the "EXTRACT: " lines from the model output.
// Models occasionally drop the prefix; unprefixed lines of substance are
// kept rather than losing content.
func parseExtracts(output string) string {
	var passages []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if stripped, ok := strings.CutPrefix(line, "EXTRACT:"); ok {
			line = strings.TrimSpace(stripped)
		}
		if len(line) < minLineLength {
			continue
		}
		passages = append(passages, line)
	}
	return strings.Join(passages, "\n")
}
