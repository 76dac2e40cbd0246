// Package cmd implements the command-line interface for the venue crawler:
// the worker pool, the background scheduler, the HTTP API server, and queue
// maintenance commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/database"
	"github.com/jonesrussell/venuecrawl/internal/logger"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "venuecrawl",
	Short: "Venue website crawler and enrichment pipeline",
	Long: `venuecrawl keeps venue data fresh: it crawls venue websites under
strict time and politeness budgets, extracts opening hours, contact details,
menus, and fees, and merges them into per-venue enrichment rows.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	// Load .env early so configuration sees its variables.
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("venuecrawl version %s\n", version)
		},
	})

	rootCmd.AddCommand(workerCommand())
	rootCmd.AddCommand(schedulerCommand())
	rootCmd.AddCommand(httpdCommand())
	rootCmd.AddCommand(queueCommand())
}

// deps holds what every long-running command needs.
type deps struct {
	cfg *config.Config
	log logger.Interface
	db  *sqlx.DB
}

// setup loads configuration, builds the logger, and opens the database.
func setup() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:    cfg.Log.Level,
		Encoding: cfg.Log.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &deps{cfg: cfg, log: log, db: db}, nil
}

func (d *deps) close() {
	if err := d.db.Close(); err != nil {
		d.log.Error("closing database failed", "error", err)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
