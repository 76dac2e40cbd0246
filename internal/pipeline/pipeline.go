// Package pipeline orchestrates one venue's crawl: homepage fetch, link
// discovery, parallel target fetches, quality gating, and TTL assignment,
// all under a single wall-clock budget.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/fetcher"
	"github.com/jonesrussell/venuecrawl/internal/linkfinder"
	"github.com/jonesrussell/venuecrawl/internal/logger"
)

// Fetcher fetches a single page under an absolute deadline.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, deadline time.Time) *fetcher.Result
}

// Page pairs a scraped-pages row with the raw HTML it was built from. The
// raw bytes here feed extraction; they land on the row itself only when
// CrawlConfig.StoreRawHTML is set.
type Page struct {
	Record  domain.PageRecord
	RawHTML []byte
}

// CrawlResult summarizes one site crawl.
type CrawlResult struct {
	BaseURL       string
	StartedAt     time.Time
	EndedAt       time.Time
	DurationMs    int64
	Pages         []Page
	FetchedCount  int
	AbortedCount  int
	ErrorsByClass map[string]int
}

// placeholderHints mark parked or stub pages that pass the length gate but
// carry no venue content.
var placeholderHints = []string{
	"coming soon",
	"under construction",
	"maintenance mode",
	"this domain is for sale",
	"website is parked",
}

// maxPlaceholderScanChars bounds how far into the text placeholder hints are
// looked for.
const maxPlaceholderScanChars = 600

// terminal reasons on the homepage abort the whole site crawl.
var terminalReasons = map[string]bool{
	fetcher.ReasonRobotsDisallowed: true,
	fetcher.ReasonNetworkTimeout:   true,
	fetcher.ReasonDNSFailure:       true,
	fetcher.ReasonTLSError:         true,
	fetcher.ReasonNetworkError:     true,
	fetcher.ReasonTimeBudget:       true,
}

// Pipeline crawls a single site within a strict deadline.
type Pipeline struct {
	downloader Fetcher
	finder     *linkfinder.Finder
	crawl      config.CrawlConfig
	fresh      config.FreshConfig
	log        logger.Interface
}

// New creates a pipeline.
func New(downloader Fetcher, finder *linkfinder.Finder, crawl config.CrawlConfig, fresh config.FreshConfig, log logger.Interface) *Pipeline {
	return &Pipeline{
		downloader: downloader,
		finder:     finder,
		crawl:      crawl,
		fresh:      fresh,
		log:        log,
	}
}

// Crawl fetches a venue's homepage and up to MaxTargets discovered pages,
// sharing one absolute deadline. placeID may be nil when the crawl is not
// tied to a known venue.
func (p *Pipeline) Crawl(ctx context.Context, placeID *string, baseURL string) *CrawlResult {
	started := time.Now()
	deadline := started.Add(p.crawl.Budget)

	result := &CrawlResult{
		BaseURL:       baseURL,
		StartedAt:     started.UTC(),
		ErrorsByClass: make(map[string]int),
	}

	home := p.downloader.Fetch(ctx, baseURL, deadline)
	result.Pages = append(result.Pages, p.makePage(home, domain.PageTypeHomepage, domain.SourceMethodDirectURL, placeID))

	if terminalReasons[home.Reason] {
		p.log.Debug("homepage fetch terminal, aborting site",
			"url", baseURL,
			"reason", home.Reason)
		return p.summarize(result, started)
	}

	targets := p.discover(home, baseURL)
	if len(targets) == 0 || time.Now().After(deadline) {
		return p.summarize(result, started)
	}

	type indexed struct {
		idx  int
		page Page
	}
	results := make(chan indexed, len(targets))
	for i, cand := range targets {
		go func(i int, cand linkfinder.Candidate) {
			res := p.downloader.Fetch(ctx, cand.URL, deadline)
			results <- indexed{idx: i, page: p.makePage(res, cand.PageType, domain.SourceMethodHeuristic, placeID)}
		}(i, cand)
	}

	collected := make([]Page, len(targets))
	for range targets {
		r := <-results
		collected[r.idx] = r.page
	}
	result.Pages = append(result.Pages, collected...)

	return p.summarize(result, started)
}

// discover runs the link finder over the homepage HTML. A homepage that
// failed the quality gate but still returned HTML is used anyway.
func (p *Pipeline) discover(home *fetcher.Result, baseURL string) []linkfinder.Candidate {
	if len(home.RawHTML) == 0 || !home.OK() {
		return nil
	}
	targets, err := p.finder.DiscoverTargets(string(home.RawHTML), baseURL, linkfinder.DefaultMaxTargets)
	if err != nil {
		p.log.Debug("link discovery failed", "url", baseURL, "error", err)
		return nil
	}
	return targets
}

// makePage gates a fetch result and shapes it into a scraped_pages row.
func (p *Pipeline) makePage(res *fetcher.Result, pageType, sourceMethod string, placeID *string) Page {
	reason := res.Reason
	if reason == fetcher.ReasonOK && !p.passesGate(res) {
		reason = fetcher.ReasonThinContent
	}

	record := domain.PageRecord{
		PlaceID:       placeID,
		URL:           res.URL,
		FinalURL:      res.FinalURL,
		PageType:      pageType,
		FetchedAt:     res.FetchedAt,
		HTTPStatus:    res.HTTPStatus,
		SourceMethod:  sourceMethod,
		RedirectChain: domain.StringList(res.RedirectChain),
		Reason:        reason,
		SizeBytes:     res.SizeBytes,
		DurationMs:    res.DurationMs,
		FirstByteMs:   res.FirstByteMs,
	}
	if res.ContentType != "" {
		record.ContentType = &res.ContentType
	}
	if res.ContentHash != "" {
		record.ContentHash = &res.ContentHash
	}
	if reason == fetcher.ReasonOK && res.CleanedText != "" {
		record.CleanedText = &res.CleanedText
		validUntil := res.FetchedAt.Add(p.ttlFor(pageType))
		record.ValidUntil = &validUntil
	}
	if p.crawl.StoreRawHTML && len(res.RawHTML) > 0 {
		record.RawHTML = res.RawHTML
	}

	return Page{Record: record, RawHTML: res.RawHTML}
}

// passesGate applies the quality gate: 200 status, HTML MIME, enough visible
// text, and no parked-page boilerplate.
func (p *Pipeline) passesGate(res *fetcher.Result) bool {
	if res.HTTPStatus != 200 {
		return false
	}
	text := strings.TrimSpace(res.CleanedText)
	if len(text) < p.crawl.MinVisibleChars {
		return false
	}
	return !isPlaceholder(text)
}

func isPlaceholder(text string) bool {
	head := strings.ToLower(text)
	if len(head) > maxPlaceholderScanChars {
		head = head[:maxPlaceholderScanChars]
	}
	for _, hint := range placeholderHints {
		if strings.Contains(head, hint) {
			return true
		}
	}
	return false
}

// ttlFor maps a page type to its freshness window.
func (p *Pipeline) ttlFor(pageType string) time.Duration {
	switch pageType {
	case domain.PageTypeHours:
		return p.fresh.HoursWindow()
	case domain.PageTypeMenu, domain.PageTypeContact, domain.PageTypeFees:
		return p.fresh.ContactWindow()
	default:
		return p.fresh.GeneralWindow()
	}
}

// summarize fills the counters and the reason histogram.
func (p *Pipeline) summarize(result *CrawlResult, started time.Time) *CrawlResult {
	result.EndedAt = time.Now().UTC()
	result.DurationMs = time.Since(started).Milliseconds()

	for _, page := range result.Pages {
		if page.Record.HTTPStatus == 200 {
			result.FetchedCount++
		}
		switch page.Record.Reason {
		case fetcher.ReasonOK:
		case fetcher.ReasonTimeBudget, fetcher.ReasonNetworkTimeout:
			result.AbortedCount++
			result.ErrorsByClass[page.Record.Reason]++
		default:
			result.ErrorsByClass[page.Record.Reason]++
		}
	}
	return result
}
