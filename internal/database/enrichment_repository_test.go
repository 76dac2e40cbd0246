package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/venuecrawl/internal/database"
	"github.com/jonesrussell/venuecrawl/internal/domain"
)

func TestEnrichmentRepository_Get_None(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEnrichmentRepository(db)

	mock.ExpectQuery("SELECT place_id").
		WithArgs("place-1").
		WillReturnError(sql.ErrNoRows)

	enrichment, err := repo.Get(context.Background(), "place-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if enrichment != nil {
		t.Errorf("expected nil enrichment, got %+v", enrichment)
	}
}

func TestEnrichmentRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEnrichmentRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT place_id").
		WithArgs("place-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"place_id",
			"hours", "hours_last_updated",
			"contact_details", "contact_last_updated",
			"description", "description_last_updated",
			"features", "features_last_updated",
			"menu_url", "menu_last_updated",
			"price_range", "price_last_updated",
			"amenities", "amenities_last_updated",
			"fees", "fees_last_updated",
			"sources",
		}).AddRow(
			"place-1",
			[]byte(`{"mon":[["09:00","17:00"]]}`), now,
			[]byte(`{"phone":"+44 20 1234 5678"}`), now,
			"A nice place", now,
			[]byte(`["garden"]`), now,
			nil, nil,
			nil, nil,
			[]byte(`[]`), nil,
			nil, nil,
			[]byte(`["https://example.com/hours"]`),
		))

	enrichment, err := repo.Get(context.Background(), "place-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if enrichment == nil {
		t.Fatal("expected enrichment row")
	}
	if len(enrichment.Hours["mon"]) != 1 || enrichment.Hours["mon"][0] != [2]string{"09:00", "17:00"} {
		t.Errorf("unexpected hours: %+v", enrichment.Hours)
	}
	if enrichment.ContactDetails == nil || enrichment.ContactDetails.Phone != "+44 20 1234 5678" {
		t.Errorf("unexpected contact details: %+v", enrichment.ContactDetails)
	}
	if len(enrichment.Sources) != 1 {
		t.Errorf("unexpected sources: %+v", enrichment.Sources)
	}
}

func TestEnrichmentRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEnrichmentRepository(db)

	now := time.Now()
	description := "Cozy bistro in the old town"
	enrichment := &domain.Enrichment{
		PlaceID:                "place-1",
		Hours:                  domain.Hours{"mon": {{"09:00", "17:00"}}},
		HoursLastUpdated:       &now,
		Description:            &description,
		DescriptionLastUpdated: &now,
		Sources:                domain.StringList{"https://example.com"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrichment").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE venues").
		WithArgs("place-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Upsert(context.Background(), enrichment, now); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPageRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewPageRepository(db)

	placeID := "place-1"
	contentType := "text/html"
	page := &domain.PageRecord{
		PlaceID:      &placeID,
		URL:          "https://example.com/hours",
		FinalURL:     "https://example.com/hours",
		PageType:     domain.PageTypeHours,
		FetchedAt:    time.Now(),
		HTTPStatus:   200,
		ContentType:  &contentType,
		SourceMethod: domain.SourceMethodHeuristic,
		Reason:       "ok",
		SizeBytes:    1024,
	}

	mock.ExpectQuery("INSERT INTO scraped_pages").
		WillReturnRows(sqlmock.NewRows([]string{"page_id"}).AddRow(int64(99)))

	pageID, err := repo.Insert(context.Background(), page)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if pageID != 99 {
		t.Errorf("expected page_id=99, got %d", pageID)
	}
}

func TestPageRepository_LatestValid_None(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewPageRepository(db)

	mock.ExpectQuery("SELECT").
		WithArgs("place-1", domain.PageTypeHours).
		WillReturnError(sql.ErrNoRows)

	page, err := repo.LatestValid(context.Background(), "place-1", domain.PageTypeHours)
	if err != nil {
		t.Fatalf("LatestValid() error = %v", err)
	}
	if page != nil {
		t.Errorf("expected nil page, got %+v", page)
	}
}

func TestVenueRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewVenueRepository(db)

	website := "https://example.com"
	mock.ExpectQuery("SELECT").
		WithArgs("place-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"place_id", "name", "category_name", "latitude", "longitude",
			"popularity_confidence", "last_enriched_at", "website", "email", "phone", "address_full",
		}).AddRow("place-1", "The Example", "Restaurant", 51.5, -0.12, 0.8, nil, website, nil, nil, nil))

	venue, err := repo.GetByID(context.Background(), "place-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !venue.HasWebsite() {
		t.Error("expected venue to have website")
	}
}

func TestVenueRepository_SelectStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewVenueRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{
			"place_id", "name", "category_name", "latitude", "longitude",
			"popularity_confidence", "last_enriched_at", "website", "email", "phone", "address_full",
		}).AddRow("place-1", "The Example", nil, 0.0, 0.0, nil, nil, "https://example.com", nil, nil, nil))

	venues, err := repo.SelectStale(context.Background(), database.StaleParams{
		HoursCutoff:   now.Add(-3 * 24 * time.Hour),
		ContactCutoff: now.Add(-14 * 24 * time.Hour),
		GeneralCutoff: now.Add(-30 * 24 * time.Hour),
		Limit:         50,
	})
	if err != nil {
		t.Fatalf("SelectStale() error = %v", err)
	}
	if len(venues) != 1 || venues[0].PlaceID != "place-1" {
		t.Errorf("unexpected venues: %+v", venues)
	}
}
