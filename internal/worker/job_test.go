package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/fetcher"
	"github.com/jonesrussell/venuecrawl/internal/logger"
	"github.com/jonesrussell/venuecrawl/internal/pipeline"
)

type fakeJobStore struct {
	succeeded []int64
	failed    map[int64]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{failed: map[int64]string{}}
}

func (f *fakeJobStore) ClaimBatch(context.Context, int, int) ([]domain.JobClaim, error) {
	return nil, nil
}

func (f *fakeJobStore) FinishSuccess(_ context.Context, jobID int64) error {
	f.succeeded = append(f.succeeded, jobID)
	return nil
}

func (f *fakeJobStore) FinishFail(_ context.Context, jobID int64, errMsg string) error {
	f.failed[jobID] = errMsg
	return nil
}

type fakePageStore struct {
	inserted []*domain.PageRecord
}

func (f *fakePageStore) InsertMany(_ context.Context, pages []*domain.PageRecord) ([]int64, error) {
	f.inserted = append(f.inserted, pages...)
	return make([]int64, len(pages)), nil
}

type fakeEnrichmentStore struct {
	existing *domain.Enrichment
	upserted *domain.Enrichment
	getErr   error
}

func (f *fakeEnrichmentStore) Get(context.Context, string) (*domain.Enrichment, error) {
	return f.existing, f.getErr
}

func (f *fakeEnrichmentStore) Upsert(_ context.Context, e *domain.Enrichment, _ time.Time) error {
	f.upserted = e
	return nil
}

type fakeCrawler struct {
	lastURL string
	result  *pipeline.CrawlResult
	panics  bool
}

func (f *fakeCrawler) Crawl(_ context.Context, _ *string, baseURL string) *pipeline.CrawlResult {
	if f.panics {
		panic("crawler exploded")
	}
	f.lastURL = baseURL
	return f.result
}

type fakeRecoverer struct {
	website string
}

func (f *fakeRecoverer) Recover(context.Context, string) (string, error) {
	return f.website, nil
}

func contactResult(url string) *pipeline.CrawlResult {
	text := "Call us on +1 555 000 1234 " + strings.Repeat("venue details ", 20)
	return &pipeline.CrawlResult{
		BaseURL: url,
		Pages: []pipeline.Page{{
			Record: domain.PageRecord{
				URL:         url,
				FinalURL:    url,
				PageType:    domain.PageTypeContact,
				HTTPStatus:  200,
				Reason:      fetcher.ReasonOK,
				CleanedText: &text,
			},
		}},
	}
}

func newTestPool(jobs JobStore, pages PageStore, enrichments EnrichmentStore, crawler Crawler, recoverer WebsiteRecoverer) *Pool {
	cfg := config.WorkerConfig{Count: 1, ClaimBatchSize: 4, IdleSleep: time.Millisecond}
	return NewPool(jobs, pages, enrichments, crawler, recoverer, cfg, 2, logger.NewNoOp())
}

func claimFor(jobID int64, website string) domain.JobClaim {
	claim := domain.JobClaim{JobID: jobID, PlaceID: "place-1", Mode: domain.JobModeRealtime}
	if website != "" {
		claim.BaseURL = &website
	}
	return claim
}

func TestRunJob_Success(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobStore()
	pages := &fakePageStore{}
	enrichments := &fakeEnrichmentStore{}
	crawler := &fakeCrawler{result: contactResult("https://example.com/contact")}
	pool := newTestPool(jobs, pages, enrichments, crawler, nil)

	pool.runJob(context.Background(), 1, claimFor(7, "https://example.com"))

	assert.Equal(t, []int64{7}, jobs.succeeded)
	assert.Empty(t, jobs.failed)
	require.Len(t, pages.inserted, 1)

	require.NotNil(t, enrichments.upserted)
	require.NotNil(t, enrichments.upserted.ContactDetails)
	assert.Equal(t, "+15550001234", enrichments.upserted.ContactDetails.Phone)

	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.JobsProcessed)
	assert.Equal(t, int64(1), stats.JobsSucceeded)
}

func TestRunJob_NoWebsite(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobStore()
	pool := newTestPool(jobs, &fakePageStore{}, &fakeEnrichmentStore{}, &fakeCrawler{}, nil)

	pool.runJob(context.Background(), 1, claimFor(7, ""))

	assert.Equal(t, failNoWebsite, jobs.failed[7])
	assert.Empty(t, jobs.succeeded)
}

func TestRunJob_RecoveredWebsiteUsed(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobStore()
	crawler := &fakeCrawler{result: contactResult("https://recovered.example.com/contact")}
	pool := newTestPool(jobs, &fakePageStore{}, &fakeEnrichmentStore{}, crawler,
		&fakeRecoverer{website: "https://recovered.example.com"})

	pool.runJob(context.Background(), 1, claimFor(7, ""))

	assert.Equal(t, "https://recovered.example.com", crawler.lastURL)
	assert.Equal(t, []int64{7}, jobs.succeeded)
}

func TestRunJob_NoEnrichment(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobStore()
	crawler := &fakeCrawler{result: &pipeline.CrawlResult{
		BaseURL: "https://example.com",
		Pages: []pipeline.Page{{
			Record: domain.PageRecord{
				URL:      "https://example.com",
				FinalURL: "https://example.com",
				PageType: domain.PageTypeHomepage,
				Reason:   fetcher.ReasonThinContent,
			},
		}},
	}}
	pages := &fakePageStore{}
	pool := newTestPool(jobs, pages, &fakeEnrichmentStore{}, crawler, nil)

	pool.runJob(context.Background(), 1, claimFor(7, "https://example.com"))

	assert.Equal(t, failNoEnrichment, jobs.failed[7])
	// The failed fetch is still persisted as evidence.
	assert.Len(t, pages.inserted, 1)
}

func TestRunJob_PanicBecomesFailure(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobStore()
	pool := newTestPool(jobs, &fakePageStore{}, &fakeEnrichmentStore{}, &fakeCrawler{panics: true}, nil)

	pool.runJob(context.Background(), 1, claimFor(7, "https://example.com"))

	assert.Contains(t, jobs.failed[7], "panic: crawler exploded")
	assert.Equal(t, int64(1), pool.Stats().JobsFailed)
}

// The cancelSensitive wrappers surface context cancellation the way the real
// repositories do: every DB call on a cancelled context fails with ctx.Err().
type cancelSensitiveJobStore struct{ *fakeJobStore }

func (s cancelSensitiveJobStore) FinishSuccess(ctx context.Context, jobID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeJobStore.FinishSuccess(ctx, jobID)
}

func (s cancelSensitiveJobStore) FinishFail(ctx context.Context, jobID int64, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeJobStore.FinishFail(ctx, jobID, errMsg)
}

type cancelSensitivePageStore struct{ *fakePageStore }

func (s cancelSensitivePageStore) InsertMany(ctx context.Context, pages []*domain.PageRecord) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fakePageStore.InsertMany(ctx, pages)
}

type cancelSensitiveEnrichmentStore struct{ *fakeEnrichmentStore }

func (s cancelSensitiveEnrichmentStore) Get(ctx context.Context, placeID string) (*domain.Enrichment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fakeEnrichmentStore.Get(ctx, placeID)
}

func (s cancelSensitiveEnrichmentStore) Upsert(ctx context.Context, e *domain.Enrichment, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeEnrichmentStore.Upsert(ctx, e, at)
}

func TestRunJob_FinishesClaimedJobAfterShutdown(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobStore()
	pages := &fakePageStore{}
	enrichments := &fakeEnrichmentStore{}
	crawler := &fakeCrawler{result: contactResult("https://example.com/contact")}
	pool := newTestPool(
		cancelSensitiveJobStore{jobs},
		cancelSensitivePageStore{pages},
		cancelSensitiveEnrichmentStore{enrichments},
		crawler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool.runJob(ctx, 1, claimFor(42, "https://example.com"))

	// The claim still reaches a terminal state: shutdown must not strand
	// running rows.
	assert.Equal(t, []int64{42}, jobs.succeeded)
	assert.Empty(t, jobs.failed)
	require.Len(t, pages.inserted, 1)
}

func TestRunJob_EnrichmentLookupError(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobStore()
	crawler := &fakeCrawler{result: contactResult("https://example.com/contact")}
	pool := newTestPool(jobs, &fakePageStore{},
		&fakeEnrichmentStore{getErr: errors.New("db down")}, crawler, nil)

	pool.runJob(context.Background(), 1, claimFor(7, "https://example.com"))

	assert.Contains(t, jobs.failed[7], "db down")
}
