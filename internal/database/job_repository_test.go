package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/venuecrawl/internal/database"
	"github.com/jonesrussell/venuecrawl/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func TestJobRepository_Enqueue_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT job_id").
		WithArgs("place-1", domain.JobModeRealtime).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO crawl_jobs").
		WithArgs("place-1", domain.JobModeRealtime, 10).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	jobID, err := repo.Enqueue(ctx, database.EnqueueParams{
		PlaceID:  "place-1",
		Mode:     domain.JobModeRealtime,
		Priority: 10,
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if jobID != 42 {
		t.Errorf("expected job_id=42, got %d", jobID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJobRepository_Enqueue_DedupesPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT job_id").
		WithArgs("place-1", domain.JobModeBackground).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	jobID, err := repo.Enqueue(ctx, database.EnqueueParams{
		PlaceID:  "place-1",
		Mode:     domain.JobModeBackground,
		Priority: 5,
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if jobID != 7 {
		t.Errorf("expected existing job_id=7, got %d", jobID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJobRepository_Enqueue_EmptyPlaceID(t *testing.T) {
	db, _ := newMockDB(t)
	repo := database.NewJobRepository(db)

	_, err := repo.Enqueue(context.Background(), database.EnqueueParams{Mode: domain.JobModeRealtime})
	if err == nil {
		t.Fatal("expected error for empty place id")
	}
}

func TestJobRepository_ClaimBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)
	ctx := context.Background()

	website := "https://example.com"
	host := "example.com"
	startedAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE crawl_jobs").
		WithArgs(2, 8).
		WillReturnRows(sqlmock.NewRows([]string{
			"job_id", "place_id", "mode", "priority", "website", "host", "started_at",
		}).
			AddRow(int64(1), "place-1", "realtime", 10, website, host, startedAt).
			AddRow(int64(2), "place-2", "background", 5, nil, nil, startedAt))
	mock.ExpectCommit()

	claims, err := repo.ClaimBatch(ctx, 8, 2)
	if err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claims))
	}
	if claims[0].JobID != 1 || claims[0].BaseURL == nil || *claims[0].BaseURL != website {
		t.Errorf("unexpected first claim: %+v", claims[0])
	}
	if claims[1].BaseURL != nil || claims[1].Host != nil {
		t.Errorf("expected nil website/host for second claim: %+v", claims[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJobRepository_ClaimBatch_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE crawl_jobs").
		WithArgs(1, 4).
		WillReturnRows(sqlmock.NewRows([]string{
			"job_id", "place_id", "mode", "priority", "website", "host", "started_at",
		}))
	mock.ExpectCommit()

	claims, err := repo.ClaimBatch(context.Background(), 4, 0)
	if err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("expected no claims, got %d", len(claims))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJobRepository_FinishSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectExec("UPDATE crawl_jobs").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.FinishSuccess(context.Background(), 42); err != nil {
		t.Fatalf("FinishSuccess() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJobRepository_FinishSuccess_NotRunning(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectExec("UPDATE crawl_jobs").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.FinishSuccess(context.Background(), 42)
	if !errors.Is(err, database.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobRepository_FinishFail_TruncatesError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	longErr := make([]byte, 3000)
	for i := range longErr {
		longErr[i] = 'x'
	}
	truncated := string(longErr[:domain.MaxErrorLen])

	mock.ExpectExec("UPDATE crawl_jobs").
		WithArgs(int64(9), truncated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.FinishFail(context.Background(), 9, string(longErr)); err != nil {
		t.Fatalf("FinishFail() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJobRepository_GetStatus_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectQuery("SELECT job_id").
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetStatus(context.Background(), 404)
	if !errors.Is(err, database.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobRepository_Depth(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectQuery("SELECT state, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"state", "n"}).
			AddRow("pending", int64(3)).
			AddRow("running", int64(1)).
			AddRow("success", int64(10)))

	depth, err := repo.Depth(context.Background())
	if err != nil {
		t.Fatalf("Depth() error = %v", err)
	}
	if depth["pending"] != 3 || depth["running"] != 1 || depth["success"] != 10 {
		t.Errorf("unexpected depth: %v", depth)
	}
}

func TestJobRepository_PruneStuck(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectExec("UPDATE crawl_jobs").
		WithArgs(int64(600)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.PruneStuck(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("PruneStuck() error = %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned jobs, got %d", n)
	}
}
