package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
	"github.com/custodia-labs/ragsync/internal/core/ports/driving"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// DefaultMinContentLength is the minimum scraped-text length below which
// a URL candidate is treated as not ready rather than processable.
const DefaultMinContentLength = 100

// ChangeDetector decides per candidate whether (re)processing is needed.
// Library files use the source's authoritative modification timestamp;
// URLs, which carry no timestamp, require a scrape and a content-hash
// comparison. That cost difference is why the two source types are not
// handled uniformly.
type ChangeDetector struct {
	states           driven.StateStore
	scraper          driven.Scraper
	minContentLength int
}

// NewChangeDetector creates a detector over the given state store and
// scraper. minContentLength <= 0 selects the default.
func NewChangeDetector(states driven.StateStore, scraper driven.Scraper, minContentLength int) *ChangeDetector {
	if minContentLength <= 0 {
		minContentLength = DefaultMinContentLength
	}
	return &ChangeDetector{
		states:           states,
		scraper:          scraper,
		minContentLength: minContentLength,
	}
}

// Detect returns the candidates needing processing this run, the count of
// candidates considered but skipped as unchanged or not ready, and any
// per-candidate errors. URL candidates that survive detection carry their
// scraped text so the pipeline does not fetch them twice. last_seen_at is
// touched for every candidate considered, whatever the outcome, except on
// dry runs, which must leave no trace in the state store.
func (d *ChangeDetector) Detect(
	ctx context.Context,
	files []domain.Candidate,
	urls []string,
	opts driving.RunOptions,
) ([]domain.Candidate, int, []domain.RunError) {
	var (
		selected []domain.Candidate
		skipped  int
		runErrs  []domain.RunError
	)

	filter := idFilter(opts.DocumentIDs)
	now := time.Now().UTC()

	for _, file := range files {
		file.DocumentID = domain.DocumentID(file.FileName, file.SourceURI)
		if filter != nil {
			if _, ok := filter[file.DocumentID]; !ok {
				continue
			}
		}

		needs, err := d.fileNeedsProcessing(ctx, &file, opts.ForceReprocess)
		switch {
		case err != nil:
			runErrs = append(runErrs, domain.RunError{
				Type:       domain.ErrorDatabase,
				DocumentID: file.DocumentID,
				Message:    fmt.Sprintf("read state: %v", err),
			})
		case needs:
			selected = append(selected, file)
		default:
			skipped++
		}
		d.touchLastSeen(ctx, file.DocumentID, now, opts.DryRun)
	}

	for _, url := range urls {
		candidate := domain.Candidate{
			DocumentID: domain.DocumentID(url, url),
			SourceType: domain.SourceURL,
			SourceURI:  url,
		}
		if filter != nil {
			if _, ok := filter[candidate.DocumentID]; !ok {
				continue
			}
		}

		text, err := d.scraper.Scrape(ctx, url)
		if err != nil {
			logger.Error("scrape %s failed: %v", url, err)
			runErrs = append(runErrs, domain.RunError{
				Type:       domain.ErrorScrape,
				DocumentID: candidate.DocumentID,
				Message:    err.Error(),
			})
			d.touchLastSeen(ctx, candidate.DocumentID, now, opts.DryRun)
			continue
		}

		if len(strings.TrimSpace(text)) < d.minContentLength {
			// Not ready: no error, no retry escalation, just skipped.
			logger.Warn("skipping %s: insufficient scraped content", url)
			skipped++
			d.touchLastSeen(ctx, candidate.DocumentID, now, opts.DryRun)
			continue
		}

		needs, err := d.urlNeedsProcessing(ctx, &candidate, text, opts.ForceReprocess)
		switch {
		case err != nil:
			runErrs = append(runErrs, domain.RunError{
				Type:       domain.ErrorDatabase,
				DocumentID: candidate.DocumentID,
				Message:    fmt.Sprintf("read state: %v", err),
			})
		case needs:
			candidate.ScrapedText = text
			selected = append(selected, candidate)
		default:
			skipped++
		}
		d.touchLastSeen(ctx, candidate.DocumentID, now, opts.DryRun)
	}

	return selected, skipped, runErrs
}

// fileNeedsProcessing applies the timestamp policy. No content is read or
// hashed: the library's modification timestamp is authoritative. A state
// read failure is surfaced so the run reports it rather than treating the
// document as unchanged.
func (d *ChangeDetector) fileNeedsProcessing(ctx context.Context, c *domain.Candidate, force bool) (bool, error) {
	state, err := d.states.Get(ctx, c.DocumentID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("new library file: %s", c.FileName)
		return true, nil
	}
	if err != nil {
		logger.Error("read state for %s: %v", c.DocumentID, err)
		return false, err
	}

	if state.Status == domain.StatusPermanentlyFailed && !force {
		logger.Debug("skipping permanently failed document: %s", c.FileName)
		return false, nil
	}

	if force {
		logger.Debug("force reprocess: %s", c.DocumentID)
		return true, nil
	}

	if state.LastProcessedAt.IsZero() {
		logger.Info("never processed: %s", c.FileName)
		return true, nil
	}

	if !c.LastModified.IsZero() && c.LastModified.After(state.LastProcessedAt) {
		logger.Info("library file modified: %s (modified=%s, last_processed=%s)",
			c.FileName, c.LastModified.UTC().Format(time.RFC3339),
			state.LastProcessedAt.UTC().Format(time.RFC3339))
		return true, nil
	}

	logger.Debug("library file unchanged: %s", c.FileName)
	return false, nil
}

// urlNeedsProcessing applies the hash policy against freshly scraped text.
func (d *ChangeDetector) urlNeedsProcessing(ctx context.Context, c *domain.Candidate, text string, force bool) (bool, error) {
	state, err := d.states.Get(ctx, c.DocumentID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("new URL: %s", c.SourceURI)
		return true, nil
	}
	if err != nil {
		logger.Error("read state for %s: %v", c.DocumentID, err)
		return false, err
	}

	if state.Status == domain.StatusPermanentlyFailed && !force {
		logger.Debug("skipping permanently failed document: %s", c.SourceURI)
		return false, nil
	}

	if force {
		logger.Debug("force reprocess: %s", c.DocumentID)
		return true, nil
	}

	if !bytes.Equal(domain.HashText(text), state.ContentHash) {
		logger.Info("URL content changed: %s", c.SourceURI)
		return true, nil
	}

	logger.Debug("URL unchanged: %s", c.SourceURI)
	return false, nil
}

// touchLastSeen records that the candidate still exists at the source.
// Dry runs never write it.
func (d *ChangeDetector) touchLastSeen(ctx context.Context, documentID string, t time.Time, dryRun bool) {
	if dryRun {
		return
	}
	if err := d.states.TouchLastSeen(ctx, documentID, t); err != nil {
		logger.Warn("update last_seen_at for %s: %v", documentID, err)
	}
}

// idFilter builds a membership set from a document-ID list, or nil when
// the run is unfiltered.
func idFilter(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	filter := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		filter[id] = struct{}{}
	}
	return filter
}
