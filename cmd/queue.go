package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/venuecrawl/internal/database"
	"github.com/jonesrussell/venuecrawl/internal/domain"
)

func queueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the crawl job queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(queueDepthCommand())
	cmd.AddCommand(queuePruneCommand())
	return cmd
}

func queueDepthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "depth",
		Short: "Show job counts per state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := setup()
			if err != nil {
				return err
			}
			defer d.close()

			depth, err := database.NewJobRepository(d.db).Depth(cmd.Context())
			if err != nil {
				return fmt.Errorf("queue depth: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"State", "Jobs"})
			var total int64
			for _, state := range []string{
				domain.JobStatePending,
				domain.JobStateRunning,
				domain.JobStateSuccess,
				domain.JobStateFail,
			} {
				t.AppendRow(table.Row{state, depth[state]})
				total += depth[state]
			}
			t.AppendFooter(table.Row{"total", total})
			t.Render()
			return nil
		},
	}
}

func queuePruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Reset jobs stuck in running back to pending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := setup()
			if err != nil {
				return err
			}
			defer d.close()

			reset, err := database.NewJobRepository(d.db).PruneStuck(cmd.Context(), d.cfg.Scheduler.StuckThreshold)
			if err != nil {
				return fmt.Errorf("prune stuck: %w", err)
			}
			fmt.Printf("reset %d stuck job(s) older than %s\n", reset, d.cfg.Scheduler.StuckThreshold)
			return nil
		},
	}
}
