package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/database"
	"github.com/jonesrussell/venuecrawl/internal/fetcher"
	"github.com/jonesrussell/venuecrawl/internal/linkfinder"
	"github.com/jonesrussell/venuecrawl/internal/pipeline"
	"github.com/jonesrussell/venuecrawl/internal/recovery"
	"github.com/jonesrussell/venuecrawl/internal/worker"
)

func workerCommand() *cobra.Command {
	var workers, batchSize int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the crawl worker pool",
		Long: `Claims pending crawl jobs, runs each venue's site crawl, and writes
scraped pages and merged enrichment. Blocks until interrupted; jobs already
claimed are finished before exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := setup()
			if err != nil {
				return err
			}
			defer d.close()

			applyWorkerFlags(&d.cfg.Worker, workers, batchSize)

			jobs := database.NewJobRepository(d.db)
			pages := database.NewPageRepository(d.db)
			venues := database.NewVenueRepository(d.db)
			enrichments := database.NewEnrichmentRepository(d.db)
			candidates := database.NewRecoveryRepository(d.db)

			robots := fetcher.NewRobotsChecker(nil, d.cfg.Crawl.UserAgent, d.cfg.Crawl.RobotsTTL)
			downloader := fetcher.NewDownloader(d.cfg.Crawl, robots, d.log)
			crawler := pipeline.New(downloader, linkfinder.New(), d.cfg.Crawl, d.cfg.Fresh, d.log)
			recoverer := recovery.New(venues, candidates, enrichments, d.log)

			pool := worker.NewPool(
				jobs,
				pages,
				enrichments,
				crawler,
				recoverer,
				d.cfg.Worker,
				d.cfg.Crawl.PerHostConcurrency,
				d.log,
			)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			pool.Run(ctx)
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent workers (overrides WORKER_COUNT)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "jobs claimed per round (overrides WORKER_CLAIM_BATCH_SIZE)")
	return cmd
}

// applyWorkerFlags lets CLI flags override env-derived settings. Zero means
// the flag was not given.
func applyWorkerFlags(cfg *config.WorkerConfig, workers, batchSize int) {
	if workers > 0 {
		cfg.Count = workers
	}
	if batchSize > 0 {
		cfg.ClaimBatchSize = batchSize
	}
}
