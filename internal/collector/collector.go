package collector

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"convwatch/internal/extract"
	"convwatch/internal/match"
	"convwatch/internal/ratelimit"
	"convwatch/internal/scraper"
	"convwatch/internal/util"
	"convwatch/pkg/domain"
	"convwatch/pkg/store"
)

// Summary describes the outcome of one collection run.
type Summary struct {
	Discovered int `json:"discovered"`
	Created    int `json:"created"`
	Skipped    int `json:"skipped"`
	Errored    int `json:"errored"`
}

// Pipeline runs the full ingestion pass: discover instrument ids, fetch
// metadata, download and extract the document, persist the convention and
// match it against subscriber companies.
type Pipeline struct {
	store     store.Store
	scraper   *scraper.Scraper
	extractor *extract.Extractor
	notifier  match.Notifier
	budget    *ratelimit.FixedWindowLimiter
	logger    *slog.Logger
}

// NewPipeline wires a pipeline. notifier and budget may be nil; budget caps
// how many instruments one window may pull from the registry.
func NewPipeline(s store.Store, sc *scraper.Scraper, ex *extract.Extractor, notifier match.Notifier, budget *ratelimit.FixedWindowLimiter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: s, scraper: sc, extractor: ex, notifier: notifier, budget: budget, logger: logger}
}

// Run executes one collection pass. A failure on one instrument is recorded
// and logged but never stops the rest; only discovery failure or context
// cancellation aborts the run. limit <= 0 means no cap.
func (p *Pipeline) Run(ctx context.Context, limit int) (Summary, error) {
	var sum Summary

	ids, err := p.scraper.DiscoverIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("discover ids: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	sum.Discovered = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		exists, err := p.store.ConventionExists(id)
		if err != nil {
			return sum, fmt.Errorf("check existing convention: %w", err)
		}
		if exists {
			sum.Skipped++
			continue
		}
		if p.budget != nil && !p.budget.Allow(ctx, "registry") {
			p.logger.Warn("registry request budget exhausted, stopping run", "remaining", sum.Discovered-sum.Created-sum.Skipped-sum.Errored)
			break
		}
		if err := p.process(ctx, id); err != nil {
			p.logger.Error("instrument processing failed", "instrument_id", id, "err", err)
			sum.Errored++
			continue
		}
		sum.Created++
	}

	p.logger.Info("collection run finished",
		"discovered", sum.Discovered, "created", sum.Created,
		"skipped", sum.Skipped, "errored", sum.Errored)
	return sum, nil
}

// process ingests a single instrument. The convention row is created in the
// PROCESSING state as soon as metadata is known; the result write and the
// matching share one transaction so a late failure rolls back this
// instrument's links but keeps the row as an ERROR audit trail.
func (p *Pipeline) process(ctx context.Context, instrumentID string) error {
	md, err := p.scraper.FetchMetadata(ctx, instrumentID)
	if err != nil {
		return err
	}
	if md.DocumentURL == "" {
		return fmt.Errorf("detail page has no document link")
	}

	conv := domain.Convention{
		ID:              util.NewID(),
		InstrumentID:    instrumentID,
		Title:           md.Title,
		Type:            "CCT",
		PublicationDate: md.PublicationDate,
		ValidityStart:   md.ValidityStart,
		ValidityEnd:     md.ValidityEnd,
		EmployerUnion:   md.EmployerUnion,
		WorkerUnion:     md.WorkerUnion,
		Municipality:    md.Municipality,
		State:           md.State,
		CNAE:            md.CNAE,
		DocumentURL:     md.DocumentURL,
		Status:          domain.StatusProcessing,
	}
	if err := p.store.CreateConvention(&conv); err != nil {
		return fmt.Errorf("create convention: %w", err)
	}

	if err := p.ingestDocument(ctx, &conv); err != nil {
		format := conv.Format
		if format == "" {
			format = domain.FormatUnknown
		}
		if uerr := p.store.UpdateConventionResult(conv.ID, conv.DocumentPath, "", format, domain.StatusError); uerr != nil {
			p.logger.Error("mark convention as errored failed", "instrument_id", instrumentID, "err", uerr)
		}
		return err
	}
	return nil
}

func (p *Pipeline) ingestDocument(ctx context.Context, conv *domain.Convention) error {
	storagePath, localPath, ext, err := p.scraper.DownloadDocument(ctx, conv.DocumentURL, conv.InstrumentID)
	if err != nil {
		return err
	}
	defer os.Remove(localPath)
	conv.DocumentPath = storagePath

	text, format := p.extractor.Extract(ctx, localPath, ext)
	conv.ExtractedText = text
	conv.Format = format
	conv.Status = domain.StatusProcessed
	if text == "" {
		conv.Status = domain.StatusError
	}

	return p.store.Transaction(func(tx store.Store) error {
		if err := tx.UpdateConventionResult(conv.ID, conv.DocumentPath, conv.ExtractedText, conv.Format, conv.Status); err != nil {
			return err
		}
		if conv.Status != domain.StatusProcessed {
			return nil
		}
		engine := match.NewEngine(tx, p.notifier, p.logger)
		if _, err := engine.MatchConvention(ctx, *conv); err != nil {
			return fmt.Errorf("match convention: %w", err)
		}
		return nil
	})
}
