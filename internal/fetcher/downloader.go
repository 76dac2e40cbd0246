package fetcher

import (
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/logger"
)

// minRemainingBudget is the floor below which a fetch is not attempted at all.
const minRemainingBudget = 50 * time.Millisecond

// readChunkSize is the streaming read size for response bodies.
const readChunkSize = 32 * 1024

// maxFetchAttempts bounds retries: one initial try plus two retries on
// transient status codes.
const maxFetchAttempts = 3

// retryBackoff is the base spacing between retry attempts.
const retryBackoff = 300 * time.Millisecond

// ErrTooManyRedirects is returned internally when the redirect hop limit is
// exceeded; it surfaces as reason network_error.
var ErrTooManyRedirects = errors.New("too many redirects")

// Result is the outcome of one fetch attempt. Reason is always set; the
// other fields are populated as far as the fetch got.
type Result struct {
	URL           string
	FinalURL      string
	HTTPStatus    int
	ContentType   string
	ContentHash   string
	FetchedAt     time.Time
	DurationMs    int64
	FirstByteMs   int64
	SizeBytes     int64
	CleanedText   string
	RawHTML       []byte
	RedirectChain []string
	Reason        string
}

// OK reports whether the fetch produced usable HTML.
func (r *Result) OK() bool {
	return r.Reason == ReasonOK
}

// Downloader fetches single pages with strict phase budgets: connect, first
// byte, and body read each get their own timeout, all three shrinking evenly
// when the whole-site deadline leaves less room.
type Downloader struct {
	cfg    config.CrawlConfig
	robots *RobotsChecker
	log    logger.Interface
}

// NewDownloader creates a downloader. The robots checker is shared so its
// per-origin cache spans all fetches.
func NewDownloader(cfg config.CrawlConfig, robots *RobotsChecker, log logger.Interface) *Downloader {
	return &Downloader{cfg: cfg, robots: robots, log: log}
}

// Fetch downloads one URL. deadline is the absolute wall-clock limit for the
// venue's whole crawl; pass the zero time for no site budget. The returned
// Result is never nil.
func (d *Downloader) Fetch(ctx context.Context, rawURL string, deadline time.Time) *Result {
	start := time.Now()
	result := &Result{URL: rawURL, FinalURL: rawURL, FetchedAt: start.UTC(), Reason: ReasonOK}

	if !deadline.IsZero() && time.Until(deadline) < minRemainingBudget {
		result.Reason = ReasonTimeBudget
		return result
	}

	allowed, robotsErr := d.robots.IsAllowed(ctx, rawURL)
	if robotsErr != nil || !allowed {
		// A robots check that cannot complete denies the fetch.
		result.Reason = ReasonRobotsDisallowed
		result.DurationMs = msSince(start)
		return result
	}

	connectT, ttfbT, readT := d.phaseBudgets(deadline)

	for attempt := 1; ; attempt++ {
		result = d.doFetch(ctx, rawURL, deadline, connectT, ttfbT, readT)
		result.DurationMs = msSince(start)

		if !d.shouldRetry(result, attempt, deadline) {
			return result
		}

		backoff := time.Duration(attempt) * retryBackoff
		d.log.Debug("retrying fetch",
			"url", rawURL,
			"status", result.HTTPStatus,
			"attempt", attempt,
			"backoff", backoff)
		select {
		case <-ctx.Done():
			return result
		case <-time.After(backoff):
		}
	}
}

// phaseBudgets returns the connect, first-byte, and read timeouts, each
// capped at an even third of the remaining site budget.
func (d *Downloader) phaseBudgets(deadline time.Time) (connectT, ttfbT, readT time.Duration) {
	connectT = d.cfg.ConnectTimeout
	ttfbT = d.cfg.TTFBTimeout
	readT = d.cfg.ReadTimeout

	if deadline.IsZero() {
		return connectT, ttfbT, readT
	}

	slicePerPhase := time.Until(deadline) / 3
	if slicePerPhase < connectT {
		connectT = slicePerPhase
	}
	if slicePerPhase < ttfbT {
		ttfbT = slicePerPhase
	}
	if slicePerPhase < readT {
		readT = slicePerPhase
	}
	return connectT, ttfbT, readT
}

// shouldRetry reports whether a transient status is worth another attempt
// within the remaining budget.
func (d *Downloader) shouldRetry(result *Result, attempt int, deadline time.Time) bool {
	if attempt >= maxFetchAttempts {
		return false
	}
	if result.Reason != ReasonNon200Status {
		return false
	}
	switch result.HTTPStatus {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
	default:
		return false
	}
	if !deadline.IsZero() && time.Until(deadline) < time.Duration(attempt)*retryBackoff+minRemainingBudget {
		return false
	}
	return true
}

// doFetch performs one HTTP exchange with the given phase timeouts.
func (d *Downloader) doFetch(
	ctx context.Context,
	rawURL string,
	deadline time.Time,
	connectT, ttfbT, readT time.Duration,
) *Result {
	start := time.Now()
	result := &Result{URL: rawURL, FinalURL: rawURL, FetchedAt: start.UTC(), Reason: ReasonOK}

	client, chain := d.newClient(connectT, ttfbT)
	defer client.CloseIdleConnections()

	reqCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	req, reqErr := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, http.NoBody)
	if reqErr != nil {
		result.Reason = ReasonNetworkError
		return result
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en;q=0.8")

	resp, doErr := client.Do(req)
	result.RedirectChain = *chain
	if doErr != nil {
		result.Reason = classifyNetError(doErr, deadline)
		return result
	}
	defer resp.Body.Close()

	result.FinalURL = resp.Request.URL.String()
	result.HTTPStatus = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")

	if resp.StatusCode != http.StatusOK {
		result.Reason = ReasonNon200Status
		return result
	}
	if !isHTML(result.ContentType) {
		result.Reason = ReasonInvalidMIME
		return result
	}

	body, firstByteMs, readReason := d.readBody(resp.Body, deadline, readT)
	result.FirstByteMs = firstByteMs
	result.SizeBytes = int64(len(body))
	result.RawHTML = body
	if len(body) > 0 {
		result.ContentHash = ComputeHash(body)
	}
	if readReason != ReasonOK {
		result.Reason = readReason
		return result
	}

	cleaned, cleanErr := CleanHTML(body, result.ContentType)
	if cleanErr != nil {
		d.log.Debug("failed to clean html", "url", rawURL, "error", cleanErr)
	}
	result.CleanedText = cleaned
	return result
}

// newClient builds a one-shot HTTP client with the given connect and
// first-byte timeouts, plus a redirect-chain recorder.
func (d *Downloader) newClient(connectT, ttfbT time.Duration) (*http.Client, *[]string) {
	dialer := &net.Dialer{Timeout: connectT}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectT,
		ResponseHeaderTimeout: ttfbT,
		DisableKeepAlives:     true,
	}

	chain := &[]string{}
	maxRedirects := d.cfg.MaxRedirects
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if maxRedirects > 0 && len(via) > maxRedirects {
				return ErrTooManyRedirects
			}
			*chain = append(*chain, via[len(via)-1].URL.String())
			return nil
		},
	}
	return client, chain
}

// readBody streams the response body in chunks, enforcing the size cap, the
// read-phase timeout, and the site deadline between chunks. The returned
// bytes are truncated to the size limit when it is exceeded.
func (d *Downloader) readBody(body io.Reader, deadline time.Time, readT time.Duration) (raw []byte, firstByteMs int64, reason string) {
	var buf []byte
	chunk := make([]byte, readChunkSize)
	readStart := time.Now()

	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			if firstByteMs == 0 {
				firstByteMs = msSince(readStart)
				if firstByteMs == 0 {
					firstByteMs = 1
				}
			}
			buf = append(buf, chunk[:n]...)
			if int64(len(buf)) > d.cfg.PageSizeLimit {
				return buf[:d.cfg.PageSizeLimit], firstByteMs, ReasonSizeLimitExceeded
			}
			if time.Since(readStart) > readT {
				return buf, firstByteMs, ReasonNetworkTimeout
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return buf, firstByteMs, ReasonTimeBudget
			}
		}
		if readErr == io.EOF {
			return buf, firstByteMs, ReasonOK
		}
		if readErr != nil {
			return buf, firstByteMs, classifyNetError(readErr, deadline)
		}
	}
}

// isHTML reports whether a Content-Type header denotes an HTML document.
func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func msSince(t time.Time) int64 {
	return time.Since(t).Milliseconds()
}
