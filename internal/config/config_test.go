package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/venuecrawl/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 1*time.Second, cfg.Crawl.ConnectTimeout)
	assert.Equal(t, int64(2*1024*1024), cfg.Crawl.PageSizeLimit)
	assert.Equal(t, 5*time.Second, cfg.Crawl.Budget)
	assert.Equal(t, 200, cfg.Crawl.MinVisibleChars)
	assert.Equal(t, 2, cfg.Crawl.PerHostConcurrency)
	assert.Equal(t, 1*time.Hour, cfg.Crawl.RobotsTTL)
	assert.False(t, cfg.Crawl.StoreRawHTML)

	assert.Equal(t, 3, cfg.Fresh.HoursDays)
	assert.Equal(t, 14, cfg.Fresh.ContactDays)
	assert.Equal(t, 30, cfg.Fresh.GeneralDays)

	assert.Equal(t, 0.9, cfg.Scheduler.TopPercentile)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/venues")
	t.Setenv("CRAWL_BUDGET_MS", "2500")
	t.Setenv("CRAWL_PER_HOST_CONCURRENCY", "4")
	t.Setenv("FRESH_HOURS_DAYS", "7")
	t.Setenv("SCHEDULER_TOP_PERCENTILE", "0.75")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://app:secret@db:5432/venues", cfg.Database.URL)
	assert.Equal(t, 2500*time.Millisecond, cfg.Crawl.Budget)
	assert.Equal(t, 4, cfg.Crawl.PerHostConcurrency)
	assert.Equal(t, 7, cfg.Fresh.HoursDays)
	assert.Equal(t, 0.75, cfg.Scheduler.TopPercentile)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestFreshWindows(t *testing.T) {
	t.Parallel()

	f := config.FreshConfig{HoursDays: 3, ContactDays: 14, GeneralDays: 30}
	assert.Equal(t, 72*time.Hour, f.HoursWindow())
	assert.Equal(t, 14*24*time.Hour, f.ContactWindow())
	assert.Equal(t, 30*24*time.Hour, f.GeneralWindow())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Database: config.DatabaseConfig{URL: "postgres://localhost/venues"},
		Crawl: config.CrawlConfig{
			Budget:             5 * time.Second,
			PageSizeLimit:      1,
			PerHostConcurrency: 1,
		},
		Worker: config.WorkerConfig{Count: 1},
		Fresh:  config.FreshConfig{HoursDays: 3, ContactDays: 14, GeneralDays: 30},
	}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Database.URL = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Crawl.Budget = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Crawl.PerHostConcurrency = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Fresh.ContactDays = 0
	assert.Error(t, bad.Validate())
}
