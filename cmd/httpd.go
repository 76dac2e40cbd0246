package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/venuecrawl/internal/api"
	"github.com/jonesrussell/venuecrawl/internal/database"
)

const shutdownTimeout = 30 * time.Second

func httpdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Run the HTTP API server",
		Long: `Serves the crawl API: POST /scrape to enqueue jobs, GET /scrape/{job_id}
to poll them, and GET /health.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := setup()
			if err != nil {
				return err
			}
			defer d.close()

			router := api.SetupRouter(
				d.log,
				database.NewJobRepository(d.db),
				database.NewEnrichmentRepository(d.db),
				d.db,
			)
			server := api.NewServer(d.cfg.Server, router)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				d.log.Info("http server starting", "address", d.cfg.Server.Address)
				if serveErr := server.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
					errCh <- serveErr
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			d.log.Info("http server shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}
