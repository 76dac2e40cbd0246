// Package worker runs the crawl job loop: claim a batch, crawl each venue's
// site, persist the pages, merge the extractions, and drive every claimed
// job to a terminal state.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/logger"
	"github.com/jonesrussell/venuecrawl/internal/pipeline"
)

// PoolState represents the current state of the pool.
type PoolState int32

const (
	// PoolStateStopped means the pool is not running.
	PoolStateStopped PoolState = iota

	// PoolStateRunning means the pool is actively processing jobs.
	PoolStateRunning

	// PoolStateDraining means the pool is shutting down gracefully.
	PoolStateDraining
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// statsLogEvery controls how often a worker logs the pool counters.
const statsLogEvery = 10

// JobStore is the queue surface the pool needs.
type JobStore interface {
	ClaimBatch(ctx context.Context, limit, perHostCap int) ([]domain.JobClaim, error)
	FinishSuccess(ctx context.Context, jobID int64) error
	FinishFail(ctx context.Context, jobID int64, errMsg string) error
}

// PageStore persists scraped pages.
type PageStore interface {
	InsertMany(ctx context.Context, pages []*domain.PageRecord) ([]int64, error)
}

// EnrichmentStore reads and writes merged enrichment rows.
type EnrichmentStore interface {
	Get(ctx context.Context, placeID string) (*domain.Enrichment, error)
	Upsert(ctx context.Context, e *domain.Enrichment, enrichedAt time.Time) error
}

// Crawler runs one site crawl.
type Crawler interface {
	Crawl(ctx context.Context, placeID *string, baseURL string) *pipeline.CrawlResult
}

// WebsiteRecoverer attempts to find a homepage for a venue without one.
type WebsiteRecoverer interface {
	Recover(ctx context.Context, placeID string) (string, error)
}

// Pool runs N claim loops against the shared job queue.
type Pool struct {
	jobs        JobStore
	pages       PageStore
	enrichments EnrichmentStore
	crawler     Crawler
	recoverer   WebsiteRecoverer
	cfg         config.WorkerConfig
	perHostCap  int
	log         logger.Interface

	state     atomic.Int32
	startedAt time.Time

	jobsProcessed atomic.Int64
	jobsSucceeded atomic.Int64
	jobsFailed    atomic.Int64
	crawlMillis   atomic.Int64
}

// NewPool creates a worker pool. recoverer may be nil to disable website
// recovery for jobs whose venue has no homepage.
func NewPool(
	jobs JobStore,
	pages PageStore,
	enrichments EnrichmentStore,
	crawler Crawler,
	recoverer WebsiteRecoverer,
	cfg config.WorkerConfig,
	perHostCap int,
	log logger.Interface,
) *Pool {
	return &Pool{
		jobs:        jobs,
		pages:       pages,
		enrichments: enrichments,
		crawler:     crawler,
		recoverer:   recoverer,
		cfg:         cfg,
		perHostCap:  perHostCap,
		log:         log,
	}
}

// Run starts the workers and blocks until ctx is cancelled. Jobs already
// claimed when the context is cancelled are finished before return.
func (p *Pool) Run(ctx context.Context) {
	count := p.cfg.Count
	if count < 1 {
		count = 1
	}
	p.startedAt = time.Now()
	p.state.Store(int32(PoolStateRunning))
	p.log.Info("worker pool starting",
		"workers", count,
		"batch_size", p.cfg.ClaimBatchSize,
		"per_host_cap", p.perHostCap)

	var wg sync.WaitGroup
	for i := 1; i <= count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}

	<-ctx.Done()
	p.state.Store(int32(PoolStateDraining))
	p.log.Info("worker pool draining")
	wg.Wait()

	p.state.Store(int32(PoolStateStopped))
	p.log.Info("worker pool stopped", "stats", p.Stats())
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			return
		}

		claims, err := p.jobs.ClaimBatch(ctx, p.cfg.ClaimBatchSize, p.perHostCap)
		if err != nil {
			p.log.Error("claim batch failed", "worker", workerID, "error", err)
			p.idle(ctx)
			continue
		}
		if len(claims) == 0 {
			p.idle(ctx)
			continue
		}

		p.log.Debug("claimed jobs", "worker", workerID, "count", len(claims))
		for _, claim := range claims {
			// Claimed jobs are finished even when shutdown has started:
			// abandoning them would leave rows stuck in running.
			p.runJob(ctx, workerID, claim)
		}
	}
}

func (p *Pool) idle(ctx context.Context) {
	sleep := p.cfg.IdleSleep
	if sleep <= 0 {
		sleep = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(sleep):
	}
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// PoolStats holds point-in-time pool counters.
type PoolStats struct {
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	JobsProcessed int64  `json:"jobs_processed"`
	JobsSucceeded int64  `json:"jobs_succeeded"`
	JobsFailed    int64  `json:"jobs_failed"`
	AvgCrawlMs    int64  `json:"avg_crawl_ms"`
}

// SuccessRate returns the fraction of processed jobs that succeeded.
func (s PoolStats) SuccessRate() float64 {
	if s.JobsProcessed == 0 {
		return 0
	}
	return float64(s.JobsSucceeded) / float64(s.JobsProcessed)
}

// Stats returns the pool counters.
func (p *Pool) Stats() PoolStats {
	processed := p.jobsProcessed.Load()
	avg := int64(0)
	if processed > 0 {
		avg = p.crawlMillis.Load() / processed
	}
	uptime := int64(0)
	if !p.startedAt.IsZero() {
		uptime = int64(time.Since(p.startedAt).Seconds())
	}
	return PoolStats{
		State:         p.State().String(),
		UptimeSeconds: uptime,
		JobsProcessed: processed,
		JobsSucceeded: p.jobsSucceeded.Load(),
		JobsFailed:    p.jobsFailed.Load(),
		AvgCrawlMs:    avg,
	}
}

func (p *Pool) recordJob(success bool, took time.Duration) int64 {
	processed := p.jobsProcessed.Add(1)
	if success {
		p.jobsSucceeded.Add(1)
	} else {
		p.jobsFailed.Add(1)
	}
	p.crawlMillis.Add(took.Milliseconds())
	return processed
}
