package services

import (
	"context"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// Pipeline turns selected candidates into chunked documents ready for
// ingestion. Failures are isolated per document: one bad download or
// chunking error never aborts the run.
type Pipeline struct {
	source  driven.ContentSource
	chunker driven.Chunker
}

// NewPipeline creates a pipeline over the given content source and chunker.
func NewPipeline(source driven.ContentSource, chunker driven.Chunker) *Pipeline {
	return &Pipeline{source: source, chunker: chunker}
}

// Process fetches and chunks every candidate, returning the processed
// documents and a per-document error list for those that failed.
func (p *Pipeline) Process(ctx context.Context, candidates []domain.Candidate) ([]domain.ProcessedDocument, []domain.RunError) {
	var (
		processed []domain.ProcessedDocument
		runErrs   []domain.RunError
	)

	for _, candidate := range candidates {
		doc, err := p.processOne(ctx, candidate)
		if err != nil {
			logger.Error("processing %s failed: %v", candidate.DocumentID, err)
			runErrs = append(runErrs, domain.RunError{
				Type:       domain.ErrorProcessing,
				DocumentID: candidate.DocumentID,
				Message:    err.Error(),
			})
			continue
		}
		processed = append(processed, doc)
	}

	return processed, runErrs
}

func (p *Pipeline) processOne(ctx context.Context, candidate domain.Candidate) (domain.ProcessedDocument, error) {
	text := candidate.ScrapedText
	if candidate.SourceType == domain.SourceLibraryFile {
		downloaded, err := p.source.Download(ctx, candidate)
		if err != nil {
			return domain.ProcessedDocument{}, err
		}
		text = downloaded
	}

	sections, err := p.chunker.Chunk(ctx, candidate.DocumentID, text)
	if err != nil {
		return domain.ProcessedDocument{}, err
	}

	logger.Debug("chunked %s into %d sections", candidate.DocumentID, len(sections))
	return domain.ProcessedDocument{
		DocumentID: candidate.DocumentID,
		SourceType: candidate.SourceType,
		SourceURI:  candidate.SourceURI,
		FileName:   candidate.FileName,
		Sections:   sections,
	}, nil
}
