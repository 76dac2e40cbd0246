// Package api implements the HTTP surface of the crawler: job submission,
// job polling, and health.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/database"
	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/logger"
)

// Version is reported by /health.
const Version = "0.1.0"

// readHeaderTimeout bounds slow-header clients.
const readHeaderTimeout = 10 * time.Second

// JobQueue is the queue surface the API needs.
type JobQueue interface {
	EnqueueMany(ctx context.Context, items []database.EnqueueParams) ([]int64, error)
	GetStatus(ctx context.Context, jobID int64) (*domain.CrawlJob, error)
	Depth(ctx context.Context) (map[string]int64, error)
}

// EnrichmentReader loads the merged enrichment row for a venue.
type EnrichmentReader interface {
	Get(ctx context.Context, placeID string) (*domain.Enrichment, error)
}

// Pinger reports database liveness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SetupRouter creates the Gin router with all routes wired.
func SetupRouter(log logger.Interface, jobs JobQueue, enrichments EnrichmentReader, db Pinger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(log))

	h := &handler{jobs: jobs, enrichments: enrichments, db: db, log: log}

	router.POST("/scrape", h.postScrape)
	router.GET("/scrape/:job_id", h.getScrape)
	router.GET("/health", h.getHealth)

	return router
}

// NewServer wraps the router in an http.Server bound to the configured
// address.
func NewServer(cfg config.ServerConfig, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// requestIDMiddleware tags every request with an id, honoring one supplied
// by the caller.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"))
	}
}
