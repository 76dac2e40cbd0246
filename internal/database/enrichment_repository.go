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

// EnrichmentRepository handles database operations for venue enrichment rows.
type EnrichmentRepository struct {
	db *sqlx.DB
}

// NewEnrichmentRepository creates a new enrichment repository.
func NewEnrichmentRepository(db *sqlx.DB) *EnrichmentRepository {
	return &EnrichmentRepository{db: db}
}

// enrichmentSelectColumns lists columns for SELECT queries on enrichment.
const enrichmentSelectColumns = `place_id,
	hours, hours_last_updated,
	contact_details, contact_last_updated,
	description, description_last_updated,
	features, features_last_updated,
	menu_url, menu_last_updated,
	price_range, price_last_updated,
	amenities, amenities_last_updated,
	fees, fees_last_updated,
	sources`

// Get returns a venue's enrichment row, or nil when none exists yet.
func (r *EnrichmentRepository) Get(ctx context.Context, placeID string) (*domain.Enrichment, error) {
	var enrichment domain.Enrichment
	err := r.db.GetContext(ctx, &enrichment, `
		SELECT `+enrichmentSelectColumns+`
		FROM enrichment
		WHERE place_id = $1
	`, placeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get enrichment: %w", err)
	}
	return &enrichment, nil
}

// Upsert writes the merged enrichment row and stamps
// venues.last_enriched_at in the same transaction. The caller (the merger)
// is responsible for per-field timestamps; this writes the row as given.
func (r *EnrichmentRepository) Upsert(ctx context.Context, e *domain.Enrichment, enrichedAt time.Time) error {
	if e == nil || e.PlaceID == "" {
		return fmt.Errorf("upsert called without enrichment")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin enrichment transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
		INSERT INTO enrichment (
			place_id,
			hours, hours_last_updated,
			contact_details, contact_last_updated,
			description, description_last_updated,
			features, features_last_updated,
			menu_url, menu_last_updated,
			price_range, price_last_updated,
			amenities, amenities_last_updated,
			fees, fees_last_updated,
			sources
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (place_id) DO UPDATE SET
			hours = EXCLUDED.hours,
			hours_last_updated = EXCLUDED.hours_last_updated,
			contact_details = EXCLUDED.contact_details,
			contact_last_updated = EXCLUDED.contact_last_updated,
			description = EXCLUDED.description,
			description_last_updated = EXCLUDED.description_last_updated,
			features = EXCLUDED.features,
			features_last_updated = EXCLUDED.features_last_updated,
			menu_url = EXCLUDED.menu_url,
			menu_last_updated = EXCLUDED.menu_last_updated,
			price_range = EXCLUDED.price_range,
			price_last_updated = EXCLUDED.price_last_updated,
			amenities = EXCLUDED.amenities,
			amenities_last_updated = EXCLUDED.amenities_last_updated,
			fees = EXCLUDED.fees,
			fees_last_updated = EXCLUDED.fees_last_updated,
			sources = EXCLUDED.sources
	`,
		e.PlaceID,
		e.Hours, e.HoursLastUpdated,
		e.ContactDetails, e.ContactLastUpdated,
		e.Description, e.DescriptionLastUpdated,
		e.Features, e.FeaturesLastUpdated,
		e.MenuURL, e.MenuLastUpdated,
		e.PriceRange, e.PriceLastUpdated,
		e.Amenities, e.AmenitiesLastUpdated,
		e.Fees, e.FeesLastUpdated,
		e.Sources)
	if err != nil {
		return fmt.Errorf("failed to upsert enrichment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE venues SET last_enriched_at = $2 WHERE place_id = $1
	`, e.PlaceID, enrichedAt)
	if err != nil {
		return fmt.Errorf("failed to stamp venue enrichment time: %w", err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit enrichment transaction: %w", commitErr)
	}
	return nil
}
