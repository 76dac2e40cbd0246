package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/venuecrawl/internal/database"
	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/logger"
)

type handler struct {
	jobs        JobQueue
	enrichments EnrichmentReader
	db          Pinger
	log         logger.Interface
}

// ScrapeRequest is the POST /scrape body.
type ScrapeRequest struct {
	PlaceIDs []string `json:"place_ids"`
	Mode     string   `json:"mode"`
	Priority *int     `json:"priority"`
}

// ScrapeResponse lists the job ids created for a scrape request, in the
// order of the submitted place ids.
type ScrapeResponse struct {
	JobIDs []int64 `json:"job_ids"`
}

// JobStatusResponse is the GET /scrape/:job_id body.
type JobStatusResponse struct {
	JobID         int64              `json:"job_id"`
	State         string             `json:"state"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
	Error         *string            `json:"error,omitempty"`
	UpdatedFields []string           `json:"updated_fields,omitempty"`
	Enrichment    *domain.Enrichment `json:"enrichment,omitempty"`
}

func (h *handler) postScrape(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.PlaceIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "place_ids required"})
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.JobModeRealtime
	}
	if mode != domain.JobModeRealtime && mode != domain.JobModeBackground {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be realtime or background"})
		return
	}

	priority := domain.MaxPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	if priority < domain.MinPriority || priority > domain.MaxPriority {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority out of range"})
		return
	}

	items := make([]database.EnqueueParams, 0, len(req.PlaceIDs))
	for _, placeID := range req.PlaceIDs {
		if placeID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "place_ids must be non-empty"})
			return
		}
		items = append(items, database.EnqueueParams{
			PlaceID:  placeID,
			Mode:     mode,
			Priority: priority,
		})
	}

	jobIDs, err := h.jobs.EnqueueMany(c.Request.Context(), items)
	if err != nil {
		h.log.Error("enqueue failed", "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
		return
	}

	c.JSON(http.StatusOK, ScrapeResponse{JobIDs: jobIDs})
}

func (h *handler) getScrape(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be an integer"})
		return
	}

	job, err := h.jobs.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.log.Error("job lookup failed", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "job lookup failed"})
		return
	}

	resp := JobStatusResponse{
		JobID:      job.JobID,
		State:      job.State,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		Error:      job.Error,
	}

	if job.State == domain.JobStateSuccess {
		enrichment, enrErr := h.enrichments.Get(c.Request.Context(), job.PlaceID)
		if enrErr != nil {
			h.log.Error("enrichment lookup failed", "place_id", job.PlaceID, "error", enrErr)
		} else if enrichment != nil {
			resp.Enrichment = enrichment
			resp.UpdatedFields = presentFields(enrichment)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// presentFields lists the enrichment field groups that carry a value.
func presentFields(e *domain.Enrichment) []string {
	var fields []string
	if len(e.Hours) > 0 {
		fields = append(fields, domain.FieldHours)
	}
	if !e.ContactDetails.IsEmpty() {
		fields = append(fields, domain.FieldContactDetails)
	}
	if e.Description != nil && *e.Description != "" {
		fields = append(fields, domain.FieldDescription)
	}
	if len(e.Features) > 0 {
		fields = append(fields, domain.FieldFeatures)
	}
	if e.MenuURL != nil && *e.MenuURL != "" {
		fields = append(fields, domain.FieldMenuURL)
	}
	if e.PriceRange != nil && *e.PriceRange != "" {
		fields = append(fields, domain.FieldPriceRange)
	}
	if len(e.Amenities) > 0 {
		fields = append(fields, domain.FieldAmenities)
	}
	if e.Fees != nil && *e.Fees != "" {
		fields = append(fields, domain.FieldFees)
	}
	return fields
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	OK         bool             `json:"ok"`
	DB         string           `json:"db"`
	QueueDepth map[string]int64 `json:"queue_depth"`
	Version    string           `json:"version"`
}

func (h *handler) getHealth(c *gin.Context) {
	resp := HealthResponse{OK: true, DB: "ok", Version: Version}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		resp.OK = false
		resp.DB = "fail"
	}

	depth, err := h.jobs.Depth(c.Request.Context())
	if err != nil {
		h.log.Error("queue depth failed", "error", err)
		resp.OK = false
	} else {
		resp.QueueDepth = depth
	}

	c.JSON(http.StatusOK, resp)
}
