// Package scheduler keeps enrichment fresh in the background: on a cron
// cadence it selects stale or high-popularity venues, enqueues background
// crawl jobs for them, and resets jobs stuck in running.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/database"
	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/logger"
)

// backgroundPriority is below the realtime default so user-triggered jobs
// claim first.
const backgroundPriority = 5

// VenueSource selects venues due for a background refresh or website
// recovery.
type VenueSource interface {
	PopularityThreshold(ctx context.Context, percentile float64) (*float64, error)
	SelectStale(ctx context.Context, params database.StaleParams) ([]domain.Venue, error)
	SelectMissingWebsite(ctx context.Context, limit int) ([]domain.Venue, error)
}

// WebsiteRecoverer attempts to find a homepage for a venue without one.
type WebsiteRecoverer interface {
	Recover(ctx context.Context, placeID string) (string, error)
}

// JobQueue is the queue surface the scheduler needs.
type JobQueue interface {
	Enqueue(ctx context.Context, params database.EnqueueParams) (int64, error)
	HasActiveJob(ctx context.Context, placeID string) (bool, error)
	PruneStuck(ctx context.Context, threshold time.Duration) (int64, error)
}

// Stats holds cumulative scheduler counters.
type Stats struct {
	CyclesRun         int64 `json:"cycles_run"`
	VenuesConsidered  int64 `json:"venues_considered"`
	JobsEnqueued      int64 `json:"jobs_enqueued"`
	JobsPruned        int64 `json:"jobs_pruned"`
	WebsitesRecovered int64 `json:"websites_recovered"`
}

// Scheduler runs the staleness sweep.
type Scheduler struct {
	venues    VenueSource
	jobs      JobQueue
	recoverer WebsiteRecoverer
	cfg       config.SchedulerConfig
	fresh     config.FreshConfig
	log       logger.Interface
	cron      *cron.Cron

	cyclesRun         atomic.Int64
	venuesConsidered  atomic.Int64
	jobsEnqueued      atomic.Int64
	jobsPruned        atomic.Int64
	websitesRecovered atomic.Int64
}

// New creates a scheduler. recoverer may be nil to disable the
// missing-website recovery pass.
func New(venues VenueSource, jobs JobQueue, recoverer WebsiteRecoverer, cfg config.SchedulerConfig, fresh config.FreshConfig, log logger.Interface) *Scheduler {
	return &Scheduler{
		venues:    venues,
		jobs:      jobs,
		recoverer: recoverer,
		cfg:       cfg,
		fresh:     fresh,
		log:       log,
	}
}

// Start registers the sweep on the configured cron expression and starts the
// cron runner. The sweep also runs once immediately so a fresh deployment
// does not wait a full cadence.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.Cron, func() {
		if _, err := s.RunCycle(ctx); err != nil {
			s.log.Error("scheduler cycle failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("register cron %q: %w", s.cfg.Cron, err)
	}
	s.cron.Start()
	s.log.Info("scheduler started", "cron", s.cfg.Cron, "max_jobs_per_cycle", s.cfg.MaxJobsPerCycle)

	if _, err := s.RunCycle(ctx); err != nil {
		s.log.Error("initial scheduler cycle failed", "error", err)
	}
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.log.Info("scheduler stopped", "stats", s.Stats())
}

// Stats returns the cumulative counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		CyclesRun:         s.cyclesRun.Load(),
		VenuesConsidered:  s.venuesConsidered.Load(),
		JobsEnqueued:      s.jobsEnqueued.Load(),
		JobsPruned:        s.jobsPruned.Load(),
		WebsitesRecovered: s.websitesRecovered.Load(),
	}
}

// RunCycle executes one sweep: prune stuck jobs, recover homepages for
// venues without one, select stale or top-popularity venues, and enqueue
// background jobs for those without an active one. Returns the number of
// jobs enqueued.
func (s *Scheduler) RunCycle(ctx context.Context) (int, error) {
	s.cyclesRun.Add(1)

	pruned, err := s.jobs.PruneStuck(ctx, s.cfg.StuckThreshold)
	if err != nil {
		s.log.Error("prune stuck failed", "error", err)
	} else if pruned > 0 {
		s.jobsPruned.Add(pruned)
		s.log.Warn("reset stuck jobs", "count", pruned)
	}

	recovered := s.recoverWebsites(ctx)

	threshold, err := s.venues.PopularityThreshold(ctx, s.cfg.TopPercentile)
	if err != nil {
		return 0, fmt.Errorf("popularity threshold: %w", err)
	}

	now := time.Now().UTC()
	venues, err := s.venues.SelectStale(ctx, database.StaleParams{
		HoursCutoff:         now.Add(-s.fresh.HoursWindow()),
		ContactCutoff:       now.Add(-s.fresh.ContactWindow()),
		GeneralCutoff:       now.Add(-s.fresh.GeneralWindow()),
		PopularityThreshold: threshold,
		Limit:               s.cfg.MaxJobsPerCycle,
	})
	if err != nil {
		return 0, fmt.Errorf("select stale: %w", err)
	}
	s.venuesConsidered.Add(int64(len(venues)))

	enqueued := 0
	for _, venue := range venues {
		if ctx.Err() != nil {
			break
		}

		active, activeErr := s.jobs.HasActiveJob(ctx, venue.PlaceID)
		if activeErr != nil {
			s.log.Error("active-job check failed", "place_id", venue.PlaceID, "error", activeErr)
			continue
		}
		if active {
			continue
		}

		jobID, enqErr := s.jobs.Enqueue(ctx, database.EnqueueParams{
			PlaceID:  venue.PlaceID,
			Mode:     domain.JobModeBackground,
			Priority: backgroundPriority,
		})
		if enqErr != nil {
			s.log.Error("enqueue failed", "place_id", venue.PlaceID, "error", enqErr)
			continue
		}
		enqueued++
		s.log.Debug("enqueued background job", "place_id", venue.PlaceID, "job_id", jobID)
	}

	s.jobsEnqueued.Add(int64(enqueued))
	s.log.Info("scheduler cycle complete",
		"considered", len(venues),
		"enqueued", enqueued,
		"pruned", pruned,
		"recovered", recovered)
	return enqueued, nil
}

// recoverWebsites sweeps venues without a homepage and tries to recover one
// from their stored email or social profiles. Recovered venues then qualify
// for the stale selection in the same cycle.
func (s *Scheduler) recoverWebsites(ctx context.Context) int {
	if s.recoverer == nil {
		return 0
	}

	venues, err := s.venues.SelectMissingWebsite(ctx, s.cfg.MaxJobsPerCycle)
	if err != nil {
		s.log.Error("select missing-website venues failed", "error", err)
		return 0
	}

	recovered := 0
	for _, venue := range venues {
		if ctx.Err() != nil {
			break
		}

		website, recErr := s.recoverer.Recover(ctx, venue.PlaceID)
		if recErr != nil {
			s.log.Warn("website recovery failed", "place_id", venue.PlaceID, "error", recErr)
			continue
		}
		if website == "" {
			continue
		}
		recovered++
		s.log.Info("website recovered", "place_id", venue.PlaceID, "website", website)
	}

	if recovered > 0 {
		s.websitesRecovered.Add(int64(recovered))
	}
	return recovered
}
