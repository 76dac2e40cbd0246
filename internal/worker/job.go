package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/enrich"
	"github.com/jonesrussell/venuecrawl/internal/fetcher"
	"github.com/jonesrussell/venuecrawl/internal/pipeline"
)

// Failure reasons written to crawl_jobs.error.
const (
	failNoWebsite    = "no_website"
	failNoEnrichment = "no_enrichment"
)

// runJob drives one claim to a terminal state. Panics inside the job become
// a job failure so a poisoned venue cannot take the worker down.
func (p *Pool) runJob(ctx context.Context, workerID int, claim domain.JobClaim) {
	// A claimed job must still reach success or fail after shutdown begins,
	// so the job runs detached from the loop's cancellation. The crawl stays
	// bounded by its own wall-clock budget.
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	var success bool

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked",
				"worker", workerID,
				"job_id", claim.JobID,
				"panic", fmt.Sprint(r))
			p.finishFail(ctx, claim.JobID, fmt.Sprintf("panic: %v", r))
			success = false
		}
		if processed := p.recordJob(success, time.Since(start)); processed%statsLogEvery == 0 {
			p.log.Info("worker stats", "worker", workerID, "stats", p.Stats())
		}
	}()

	success = p.process(ctx, workerID, claim)
}

func (p *Pool) process(ctx context.Context, workerID int, claim domain.JobClaim) bool {
	p.log.Info("processing job",
		"worker", workerID,
		"job_id", claim.JobID,
		"place_id", claim.PlaceID,
		"mode", claim.Mode)

	baseURL := ""
	if claim.BaseURL != nil {
		baseURL = *claim.BaseURL
	}
	if baseURL == "" {
		baseURL = p.recoverWebsite(ctx, claim.PlaceID)
	}
	if baseURL == "" {
		p.finishFail(ctx, claim.JobID, failNoWebsite)
		return false
	}

	result := p.crawler.Crawl(ctx, &claim.PlaceID, baseURL)
	if err := p.persistPages(ctx, result); err != nil {
		p.log.Error("persisting pages failed", "job_id", claim.JobID, "error", err)
		p.finishFail(ctx, claim.JobID, fmt.Sprintf("persist pages: %v", err))
		return false
	}

	row, updated, err := p.mergeEnrichment(ctx, claim.PlaceID, result)
	if err != nil {
		p.finishFail(ctx, claim.JobID, fmt.Sprintf("merge enrichment: %v", err))
		return false
	}
	if len(updated) == 0 {
		p.finishFail(ctx, claim.JobID, failNoEnrichment)
		return false
	}

	if err := p.enrichments.Upsert(ctx, row, time.Now().UTC()); err != nil {
		p.log.Error("enrichment upsert failed", "job_id", claim.JobID, "error", err)
		p.finishFail(ctx, claim.JobID, fmt.Sprintf("upsert enrichment: %v", err))
		return false
	}

	if err := p.jobs.FinishSuccess(ctx, claim.JobID); err != nil {
		p.log.Error("finish success failed", "job_id", claim.JobID, "error", err)
		return false
	}

	p.log.Info("job succeeded",
		"worker", workerID,
		"job_id", claim.JobID,
		"place_id", claim.PlaceID,
		"updated_fields", updated,
		"pages", len(result.Pages))
	return true
}

func (p *Pool) recoverWebsite(ctx context.Context, placeID string) string {
	if p.recoverer == nil {
		return ""
	}
	website, err := p.recoverer.Recover(ctx, placeID)
	if err != nil {
		p.log.Warn("website recovery failed", "place_id", placeID, "error", err)
		return ""
	}
	return website
}

func (p *Pool) persistPages(ctx context.Context, result *pipeline.CrawlResult) error {
	records := make([]*domain.PageRecord, 0, len(result.Pages))
	for i := range result.Pages {
		records = append(records, &result.Pages[i].Record)
	}
	_, err := p.pages.InsertMany(ctx, records)
	return err
}

// mergeEnrichment extracts facts from the gate-passing pages and merges them
// over the venue's existing enrichment row.
func (p *Pool) mergeEnrichment(ctx context.Context, placeID string, result *pipeline.CrawlResult) (*domain.Enrichment, []string, error) {
	var pageFacts []enrich.PageFacts
	for _, page := range result.Pages {
		rec := page.Record
		if rec.Reason != fetcher.ReasonOK || rec.CleanedText == nil {
			continue
		}
		facts := enrich.PageFacts{
			URL:       rec.FinalURL,
			PageType:  rec.PageType,
			Heuristic: enrich.ExtractFromText(rec.PageType, rec.FinalURL, *rec.CleanedText),
		}
		if len(page.RawHTML) > 0 {
			facts.Schema = enrich.ParseSchemaOrg(string(page.RawHTML))
		}
		pageFacts = append(pageFacts, facts)
	}

	existing, err := p.enrichments.Get(ctx, placeID)
	if err != nil {
		return nil, nil, fmt.Errorf("load enrichment: %w", err)
	}

	row, updated := enrich.BuildEnrichment(existing, placeID, pageFacts, time.Now().UTC())
	return row, updated, nil
}

func (p *Pool) finishFail(ctx context.Context, jobID int64, reason string) {
	if err := p.jobs.FinishFail(ctx, jobID, reason); err != nil {
		p.log.Error("finish fail failed", "job_id", jobID, "error", err)
	}
}
