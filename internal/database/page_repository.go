package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/venuecrawl/internal/domain"
)

// PageRepository handles database operations for scraped pages.
// scraped_pages is append-only: every fetch attempt leaves a row, including
// refusals, so nothing here ever updates or deletes.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// InsertMany writes a batch of fetch attempts in one transaction and returns
// their page_ids in input order.
func (r *PageRepository) InsertMany(ctx context.Context, pages []*domain.PageRecord) ([]int64, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin page insert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	pageIDs := make([]int64, 0, len(pages))
	for _, page := range pages {
		var pageID int64
		insertErr := tx.GetContext(ctx, &pageID, `
			INSERT INTO scraped_pages (
				place_id, url, final_url, page_type, fetched_at, valid_until,
				http_status, content_type, content_hash, cleaned_text, raw_html,
				source_method, redirect_chain, reason, size_bytes,
				duration_ms, first_byte_ms
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING page_id
		`,
			page.PlaceID, page.URL, page.FinalURL, page.PageType, page.FetchedAt, page.ValidUntil,
			page.HTTPStatus, page.ContentType, page.ContentHash, page.CleanedText, page.RawHTML,
			page.SourceMethod, page.RedirectChain, page.Reason, page.SizeBytes,
			page.DurationMs, page.FirstByteMs)
		if insertErr != nil {
			return nil, fmt.Errorf("failed to insert scraped page: %w", insertErr)
		}
		pageIDs = append(pageIDs, pageID)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit page insert transaction: %w", commitErr)
	}
	return pageIDs, nil
}

// pageSelectColumns lists columns for SELECT queries on scraped_pages.
const pageSelectColumns = `page_id, place_id, url, final_url, page_type, fetched_at, valid_until,
	http_status, content_type, content_hash, cleaned_text, raw_html, source_method,
	redirect_chain, reason, size_bytes, duration_ms, first_byte_ms`

// LatestValid returns the freshest still-valid successful page of the given
// type for a venue, or nil when none exists.
func (r *PageRepository) LatestValid(ctx context.Context, placeID, pageType string) (*domain.PageRecord, error) {
	var page domain.PageRecord
	err := r.db.GetContext(ctx, &page, `
		SELECT `+pageSelectColumns+`
		FROM scraped_pages
		WHERE place_id = $1 AND page_type = $2 AND reason = 'ok'
		  AND valid_until IS NOT NULL AND valid_until > NOW()
		ORDER BY fetched_at DESC
		LIMIT 1
	`, placeID, pageType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest valid page: %w", err)
	}
	return &page, nil
}

// ListByPlace returns a venue's fetch history, newest first.
func (r *PageRepository) ListByPlace(ctx context.Context, placeID string, limit int) ([]domain.PageRecord, error) {
	var pages []domain.PageRecord
	err := r.db.SelectContext(ctx, &pages, `
		SELECT `+pageSelectColumns+`
		FROM scraped_pages
		WHERE place_id = $1
		ORDER BY fetched_at DESC
		LIMIT $2
	`, placeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scraped pages: %w", err)
	}
	return pages, nil
}
