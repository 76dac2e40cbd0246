// Package linkfinder discovers same-site target pages (hours, menu, contact,
// about, fees) from a venue homepage's HTML. It only discovers links; it
// never fetches.
package linkfinder

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/venuecrawl/internal/urlutil"
)

// DefaultMaxTargets is how many target pages a crawl follows beyond the
// homepage.
const DefaultMaxTargets = 3

// Scoring weights. URL path hits outweigh anchor text; placement in
// nav/header/footer adds a capped boost.
const (
	urlTokenWeight    = 0.6
	anchorTokenWeight = 0.4
	maxSectionBoost   = 0.3
)

// fileExtPattern skips links to obvious non-HTML files.
var fileExtPattern = regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|zip|rar|7z)(\?|$)`)

// Candidate is a classified same-site link.
type Candidate struct {
	URL        string
	PageType   string
	Confidence float64
	AnchorText string
	Reason     string
}

// Finder discovers target pages in homepage HTML.
type Finder struct{}

// New creates a Finder.
func New() *Finder {
	return &Finder{}
}

// DiscoverTargets parses HTML and returns up to maxTargets same-site links,
// one best candidate per type, ordered hours > menu > contact > about > fees.
func (f *Finder) DiscoverTargets(html, baseURL string, maxTargets int) ([]Candidate, error) {
	if maxTargets <= 0 {
		maxTargets = DefaultMaxTargets
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	byType := make(map[string][]Candidate)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" {
			return
		}

		ref, parseErr := url.Parse(strings.TrimSpace(href))
		if parseErr != nil {
			return
		}
		abs := base.ResolveReference(ref)
		scheme := strings.ToLower(abs.Scheme)
		if scheme != "http" && scheme != "https" {
			return
		}
		if !urlutil.SameSite(baseURL, abs.String()) {
			return
		}

		normURL := urlutil.StripTracking(abs.String())
		if fileExtPattern.MatchString(normURL) {
			return
		}
		if seen[normURL] {
			return
		}
		seen[normURL] = true

		anchorText := strings.TrimSpace(a.Text())
		pageType, score, reason := classify(abs.Path, anchorText)
		if pageType == "" {
			return
		}

		score += sectionWeight(a)
		if score > 1.0 {
			score = 1.0
		}

		byType[pageType] = append(byType[pageType], Candidate{
			URL:        normURL,
			PageType:   pageType,
			Confidence: score,
			AnchorText: anchorText,
			Reason:     reason,
		})
	})

	results := make([]Candidate, 0, maxTargets)
	for _, pageType := range targetOrder {
		candidates := byType[pageType]
		if len(candidates) == 0 {
			continue
		}
		// Highest confidence wins; shorter URL breaks ties (/menu beats
		// /menus/today).
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Confidence != candidates[j].Confidence {
				return candidates[i].Confidence > candidates[j].Confidence
			}
			return len(candidates[i].URL) < len(candidates[j].URL)
		})
		results = append(results, candidates[0])
		if len(results) >= maxTargets {
			break
		}
	}
	return results, nil
}

// classify scores a link against the keyword tables using its URL path and
// anchor text. Returns "" when no type matches or a negative keyword fires.
func classify(urlPath, anchorText string) (pageType string, score float64, reason string) {
	pathLower := strings.ToLower(urlPath)
	textLower := strings.ToLower(anchorText)

	if containsAny(pathLower, negativeKeywords) || containsAny(textLower, negativeKeywords) {
		return "", 0, ""
	}

	scores := make(map[string]float64, len(keywords))
	reasons := make(map[string][]string, len(keywords))

	for targetType, tokens := range keywords {
		for _, token := range tokens {
			if pathContainsToken(pathLower, token) {
				scores[targetType] += urlTokenWeight
				reasons[targetType] = append(reasons[targetType], "url:"+token)
			}
			if strings.Contains(textLower, token) {
				scores[targetType] += anchorTokenWeight
				reasons[targetType] = append(reasons[targetType], "text:"+token)
			}
		}
	}

	best := ""
	bestScore := 0.0
	for _, targetType := range targetOrder {
		if scores[targetType] > bestScore {
			best = targetType
			bestScore = scores[targetType]
		}
	}
	if best == "" {
		return "", 0, ""
	}
	if bestScore > 1.0 {
		bestScore = 1.0
	}

	matched := reasons[best]
	if len(matched) > 4 {
		matched = matched[:4]
	}
	return best, bestScore, strings.Join(matched, ",")
}

// pathContainsToken reports whether token appears in the URL path bounded by
// separators, so "open" matches /open-times but not /reopening.
func pathContainsToken(path, token string) bool {
	haystack := "/" + path + "/"
	for start := 0; ; {
		idx := strings.Index(haystack[start:], token)
		if idx < 0 {
			return false
		}
		idx += start
		before := haystack[idx-1]
		after := byte('/')
		if idx+len(token) < len(haystack) {
			after = haystack[idx+len(token)]
		}
		if isSeparator(before) && isSeparator(after) {
			return true
		}
		start = idx + 1
	}
}

func isSeparator(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	}
	return true
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

// sectionNameHints boost links placed in obvious navigation containers.
var sectionNameHints = []string{"menu", "main-nav", "site-nav", "top-bar", "masthead"}

// sectionWeight boosts links that sit in nav, header, or footer containers.
func sectionWeight(a *goquery.Selection) float64 {
	weight := 0.0
	for parent := a.Parent(); parent.Length() > 0; parent = parent.Parent() {
		name := strings.ToLower(goquery.NodeName(parent))
		class, _ := parent.Attr("class")
		id, _ := parent.Attr("id")
		blob := strings.ToLower(name + " " + class + " " + id)

		if strings.Contains(name, "nav") || strings.Contains(name, "header") {
			weight += 0.15
		}
		if strings.Contains(name, "footer") {
			weight += 0.05
		}
		for _, hint := range sectionNameHints {
			if strings.Contains(blob, hint) {
				weight += 0.1
				break
			}
		}
		if name == "body" || name == "main" || name == "html" {
			break
		}
	}
	if weight > maxSectionBoost {
		weight = maxSectionBoost
	}
	return weight
}
