// Package fetcher downloads venue pages under strict per-phase time budgets,
// with robots.txt compliance, size caps, MIME gating, and reason codes on
// every attempt.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// defaultRobotsCacheTTL is used when no TTL is configured.
const defaultRobotsCacheTTL = time.Hour

// defaultRobotsFetchTimeout bounds robots.txt fetches when no client is
// supplied.
const defaultRobotsFetchTimeout = 10 * time.Second

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// maxRobotsBodyBytes limits the size of robots.txt responses we will read.
const maxRobotsBodyBytes = 512 * 1024 // 512 KB

// RobotsChecker checks and caches robots.txt rules per origin
// (scheme://host:port). http://example.com and https://example.com are
// distinct origins and cached separately.
type RobotsChecker struct {
	httpClient *http.Client
	userAgent  string
	cache      map[string]*robotsCacheEntry // keyed by origin
	mu         sync.RWMutex
	cacheTTL   time.Duration
}

// robotsCacheEntry stores the parsed robots.txt data and metadata for an origin.
type robotsCacheEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool // true if robots.txt was missing or errored (allow all)
}

// NewRobotsChecker creates a new RobotsChecker.
func NewRobotsChecker(httpClient *http.Client, userAgent string, cacheTTL time.Duration) *RobotsChecker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRobotsFetchTimeout}
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultRobotsCacheTTL
	}

	return &RobotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		cache:      make(map[string]*robotsCacheEntry),
		cacheTTL:   cacheTTL,
	}
}

// IsAllowed checks if the given URL is allowed by its origin's robots.txt.
// Missing or errored robots.txt results in allow all (standard practice).
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, parseErr := url.Parse(rawURL)
	if parseErr != nil {
		return false, fmt.Errorf("robots: parse url: %w", parseErr)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	origin := scheme + "://" + host

	entry, fetchErr := r.getOrFetchEntry(ctx, origin)
	if fetchErr != nil {
		return false, fetchErr
	}

	if entry.allowAll {
		return true, nil
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return entry.data.TestAgent(path, r.userAgent), nil
}

// getOrFetchEntry returns a cached entry if fresh, otherwise fetches robots.txt.
func (r *RobotsChecker) getOrFetchEntry(ctx context.Context, origin string) (*robotsCacheEntry, error) {
	if entry, ok := r.getCachedEntry(origin); ok {
		return entry, nil
	}
	return r.fetchAndCache(ctx, origin)
}

// getCachedEntry returns a cached entry if it exists and is not stale.
func (r *RobotsChecker) getCachedEntry(origin string) (*robotsCacheEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[origin]
	if !ok {
		return nil, false
	}
	if time.Since(entry.fetchedAt) > r.cacheTTL {
		return nil, false
	}
	return entry, true
}

// fetchAndCache fetches robots.txt for the origin and caches the result.
func (r *RobotsChecker) fetchAndCache(ctx context.Context, origin string) (*robotsCacheEntry, error) {
	body, statusCode, fetchErr := r.doFetch(ctx, origin+robotsTxtPath)
	if fetchErr != nil {
		// Fetch failures are treated as allow-all (graceful degradation).
		return r.cacheEntry(origin, &robotsCacheEntry{fetchedAt: time.Now(), allowAll: true}), nil
	}

	return r.cacheEntry(origin, parseRobotsEntry(body, statusCode)), nil
}

// doFetch performs the HTTP GET request for a robots.txt URL.
func (r *RobotsChecker) doFetch(ctx context.Context, robotsURL string) (body []byte, statusCode int, err error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if reqErr != nil {
		return nil, 0, fmt.Errorf("robots: create request: %w", reqErr)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, doErr := r.httpClient.Do(req)
	if doErr != nil {
		return nil, 0, fmt.Errorf("robots: fetch: %w", doErr)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxRobotsBodyBytes)
	body, readErr := io.ReadAll(limited)
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("robots: read body: %w", readErr)
	}
	return body, resp.StatusCode, nil
}

// parseRobotsEntry parses a robots.txt response body with status code.
// Only 2xx responses are parsed; all others are treated as allow-all.
func parseRobotsEntry(body []byte, statusCode int) *robotsCacheEntry {
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &robotsCacheEntry{fetchedAt: time.Now(), allowAll: true}
	}

	robots, parseErr := robotstxt.FromBytes(body)
	if parseErr != nil {
		return &robotsCacheEntry{fetchedAt: time.Now(), allowAll: true}
	}
	return &robotsCacheEntry{data: robots, fetchedAt: time.Now()}
}

// cacheEntry stores an entry for the origin and returns it.
func (r *RobotsChecker) cacheEntry(origin string, entry *robotsCacheEntry) *robotsCacheEntry {
	r.mu.Lock()
	r.cache[origin] = entry
	r.mu.Unlock()
	return entry
}
