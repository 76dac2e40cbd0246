package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/venuecrawl/internal/domain"
)

// RecoveryRepository handles database operations for website recovery
// candidates.
type RecoveryRepository struct {
	db *sqlx.DB
}

// NewRecoveryRepository creates a new recovery repository.
func NewRecoveryRepository(db *sqlx.DB) *RecoveryRepository {
	return &RecoveryRepository{db: db}
}

// InsertCandidates records proposed homepage URLs for a venue. Duplicate
// (place_id, url) pairs are ignored.
func (r *RecoveryRepository) InsertCandidates(ctx context.Context, candidates []domain.RecoveryCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin recovery transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, candidate := range candidates {
		_, insertErr := tx.ExecContext(ctx, `
			INSERT INTO recovery_candidates (place_id, url, confidence, method, is_chosen)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (place_id, url) DO NOTHING
		`, candidate.PlaceID, candidate.URL, candidate.Confidence, candidate.Method, candidate.IsChosen)
		if insertErr != nil {
			return fmt.Errorf("failed to insert recovery candidate: %w", insertErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit recovery transaction: %w", commitErr)
	}
	return nil
}

// ListByPlace returns all recorded candidates for a venue, best first.
func (r *RecoveryRepository) ListByPlace(ctx context.Context, placeID string) ([]domain.RecoveryCandidate, error) {
	var candidates []domain.RecoveryCandidate
	err := r.db.SelectContext(ctx, &candidates, `
		SELECT place_id, url, confidence, method, is_chosen
		FROM recovery_candidates
		WHERE place_id = $1
		ORDER BY confidence DESC, length(url) ASC
	`, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery candidates: %w", err)
	}
	return candidates, nil
}
