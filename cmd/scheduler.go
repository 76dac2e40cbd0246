package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/database"
	"github.com/jonesrussell/venuecrawl/internal/recovery"
	"github.com/jonesrussell/venuecrawl/internal/scheduler"
)

func schedulerCommand() *cobra.Command {
	var once bool
	var sleepSeconds, batchSize int

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the background freshness scheduler",
		Long: `Sweeps for venues with stale or missing enrichment on a cron cadence,
recovers homepages for venues without one, enqueues background crawl jobs,
and resets jobs stuck in running.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := setup()
			if err != nil {
				return err
			}
			defer d.close()

			applySchedulerFlags(&d.cfg.Scheduler, sleepSeconds, batchSize)

			venues := database.NewVenueRepository(d.db)
			recoverer := recovery.New(
				venues,
				database.NewRecoveryRepository(d.db),
				database.NewEnrichmentRepository(d.db),
				d.log,
			)
			s := scheduler.New(
				venues,
				database.NewJobRepository(d.db),
				recoverer,
				d.cfg.Scheduler,
				d.cfg.Fresh,
				d.log,
			)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if once {
				_, err = s.RunCycle(ctx)
				return err
			}

			if err := s.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			s.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	cmd.Flags().IntVar(&sleepSeconds, "sleep-seconds", 0, "sweep every N seconds instead of the cron cadence (overrides SCHEDULER_CRON)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "venues handled per sweep (overrides SCHEDULER_MAX_JOBS_PER_CYCLE)")
	return cmd
}

// applySchedulerFlags lets CLI flags override env-derived settings. Zero
// means the flag was not given.
func applySchedulerFlags(cfg *config.SchedulerConfig, sleepSeconds, batchSize int) {
	if sleepSeconds > 0 {
		cfg.Cron = fmt.Sprintf("@every %ds", sleepSeconds)
	}
	if batchSize > 0 {
		cfg.MaxJobsPerCycle = batchSize
	}
}
