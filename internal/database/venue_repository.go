package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/venuecrawl/internal/domain"
)

// ErrVenueNotFound is returned when a venue lookup matches no row.
var ErrVenueNotFound = errors.New("venue not found")

// venueSelectColumns lists columns for SELECT queries on venues (aliased as v).
const venueSelectColumns = `v.place_id, v.name, v.category_name, v.latitude, v.longitude,
	v.popularity_confidence, v.last_enriched_at, v.website, v.email, v.phone, v.address_full`

// VenueRepository handles database operations for venues.
type VenueRepository struct {
	db *sqlx.DB
}

// NewVenueRepository creates a new venue repository.
func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// GetByID returns a venue by its place id.
func (r *VenueRepository) GetByID(ctx context.Context, placeID string) (*domain.Venue, error) {
	var venue domain.Venue
	err := r.db.GetContext(ctx, &venue, `
		SELECT `+venueSelectColumns+`
		FROM venues v
		WHERE v.place_id = $1
	`, placeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return &venue, nil
}

// UpdateWebsite sets the venue's homepage URL (used by website recovery).
func (r *VenueRepository) UpdateWebsite(ctx context.Context, placeID, website string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE venues SET website = $2 WHERE place_id = $1
	`, placeID, website)
	if err != nil {
		return fmt.Errorf("failed to update venue website: %w", err)
	}
	return execRequireRows(result, nil, ErrVenueNotFound)
}

// PopularityThreshold computes the popularity_confidence value at the given
// percentile (e.g. 0.9 for the top 10%). Returns nil when no venue has a
// popularity score.
func (r *VenueRepository) PopularityThreshold(ctx context.Context, percentile float64) (*float64, error) {
	var threshold sql.NullFloat64
	err := r.db.GetContext(ctx, &threshold, `
		SELECT percentile_disc($1) WITHIN GROUP (ORDER BY popularity_confidence)
		FROM venues
		WHERE popularity_confidence IS NOT NULL
	`, percentile)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to compute popularity threshold: %w", err)
	}
	if !threshold.Valid {
		return nil, nil
	}
	return &threshold.Float64, nil
}

// StaleParams bounds a stale-venue sweep: a venue is stale when any field
// group's last_updated is missing or older than its window cutoff.
type StaleParams struct {
	HoursCutoff   time.Time
	ContactCutoff time.Time
	GeneralCutoff time.Time
	// PopularityThreshold, when non-nil, additionally includes every venue at
	// or above it regardless of staleness.
	PopularityThreshold *float64
	Limit               int
}

// SelectStale returns venues whose enrichment is missing or stale per the
// freshness windows, plus high-popularity venues above the threshold. Stale
// venues sort first, then by popularity, then by oldest enrichment. Only
// venues with a website qualify.
func (r *VenueRepository) SelectStale(ctx context.Context, params StaleParams) ([]domain.Venue, error) {
	const staleCondition = `
		e.place_id IS NULL
		OR e.hours_last_updated IS NULL OR e.hours_last_updated < $1
		OR e.contact_last_updated IS NULL OR e.contact_last_updated < $2
		OR e.menu_last_updated IS NULL OR e.menu_last_updated < $2
		OR e.price_last_updated IS NULL OR e.price_last_updated < $2
		OR e.description_last_updated IS NULL OR e.description_last_updated < $3
		OR e.features_last_updated IS NULL OR e.features_last_updated < $3
	`

	query := `
		SELECT ` + venueSelectColumns + `
		FROM venues v
		LEFT JOIN enrichment e USING (place_id)
		WHERE v.website IS NOT NULL AND v.website != ''
		  AND (
		    (` + staleCondition + `)
		    OR ($4::double precision IS NOT NULL
		        AND v.popularity_confidence IS NOT NULL
		        AND v.popularity_confidence >= $4)
		  )
		ORDER BY
		  (CASE WHEN ` + staleCondition + ` THEN 0 ELSE 1 END) ASC,
		  v.popularity_confidence DESC NULLS LAST,
		  COALESCE(e.description_last_updated, e.features_last_updated, e.menu_last_updated,
		           e.price_last_updated, e.contact_last_updated, e.hours_last_updated,
		           v.last_enriched_at) ASC NULLS LAST
		LIMIT $5
	`

	var venues []domain.Venue
	err := r.db.SelectContext(ctx, &venues, query,
		params.HoursCutoff, params.ContactCutoff, params.GeneralCutoff,
		params.PopularityThreshold, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select stale venues: %w", err)
	}
	return venues, nil
}

// SelectMissingWebsite returns venues without a homepage URL, ordered so
// venues with an email (recoverable) come first, then by popularity.
func (r *VenueRepository) SelectMissingWebsite(ctx context.Context, limit int) ([]domain.Venue, error) {
	var venues []domain.Venue
	err := r.db.SelectContext(ctx, &venues, `
		SELECT `+venueSelectColumns+`
		FROM venues v
		WHERE v.website IS NULL OR v.website = ''
		ORDER BY (v.email IS NOT NULL) DESC, v.popularity_confidence DESC NULLS LAST, v.place_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select venues missing website: %w", err)
	}
	return venues, nil
}
