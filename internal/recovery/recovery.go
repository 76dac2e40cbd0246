// Package recovery infers a canonical homepage for venues missing one, from
// the venue's email domain or from homepage hints buried in social profile
// URLs. Social networks and link-in-bio hubs are never chosen as a website.
package recovery

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/logger"
	"github.com/jonesrussell/venuecrawl/internal/urlutil"
)

var socialHosts = []string{
	"facebook.com", "m.facebook.com", "instagram.com", "x.com", "twitter.com",
	"tiktok.com", "linkedin.com", "youtube.com", "youtu.be", "pinterest.com",
}

var linkHubHosts = []string{
	"linktr.ee", "bio.link", "beacons.ai", "taplink.cc", "campsite.bio",
}

var (
	domainPattern   = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	embeddedURLPatt = regexp.MustCompile(`https?://[A-Za-z0-9.\-_/]+`)
)

// emailDomainConfidence reflects that a venue's own email domain is almost
// always its website.
const emailDomainConfidence = 0.9

// socialHintConfidence is lower: the hint is scraped out of a profile URL.
const socialHintConfidence = 0.6

// VenueStore is the subset of the venue repository recovery needs.
type VenueStore interface {
	GetByID(ctx context.Context, placeID string) (*domain.Venue, error)
	UpdateWebsite(ctx context.Context, placeID, website string) error
}

// CandidateStore records proposed homepage URLs.
type CandidateStore interface {
	InsertCandidates(ctx context.Context, candidates []domain.RecoveryCandidate) error
}

// EnrichmentStore exposes prior enrichment, whose social links can carry
// homepage hints.
type EnrichmentStore interface {
	Get(ctx context.Context, placeID string) (*domain.Enrichment, error)
}

// Recoverer proposes and applies website candidates.
type Recoverer struct {
	venues      VenueStore
	candidates  CandidateStore
	enrichments EnrichmentStore
	log         logger.Interface
}

// New creates a recoverer. enrichments may be nil when no enrichment data
// exists yet.
func New(venues VenueStore, candidates CandidateStore, enrichments EnrichmentStore, log logger.Interface) *Recoverer {
	return &Recoverer{
		venues:      venues,
		candidates:  candidates,
		enrichments: enrichments,
		log:         log,
	}
}

// Recover proposes website candidates for one venue and, when a usable one
// exists, writes it to venues.website. Returns the chosen website, or "" when
// nothing could be recovered. Venues that already have a website are returned
// as-is.
func (r *Recoverer) Recover(ctx context.Context, placeID string) (string, error) {
	venue, err := r.venues.GetByID(ctx, placeID)
	if err != nil {
		return "", fmt.Errorf("load venue: %w", err)
	}
	if venue.HasWebsite() {
		return *venue.Website, nil
	}

	proposals := r.propose(ctx, venue)
	if len(proposals) == 0 {
		return "", nil
	}

	// Highest confidence wins; shortest URL breaks ties. InsertCandidates
	// keeps this order, so it only needs a stable pick here.
	chosen := proposals[0]
	for _, c := range proposals[1:] {
		if c.Confidence > chosen.Confidence ||
			(c.Confidence == chosen.Confidence && len(c.URL) < len(chosen.URL)) {
			chosen = c
		}
	}

	rows := make([]domain.RecoveryCandidate, 0, len(proposals))
	for _, c := range proposals {
		c.IsChosen = c.URL == chosen.URL
		rows = append(rows, c)
	}
	if err := r.candidates.InsertCandidates(ctx, rows); err != nil {
		return "", fmt.Errorf("record candidates: %w", err)
	}

	if err := r.venues.UpdateWebsite(ctx, placeID, chosen.URL); err != nil {
		return "", fmt.Errorf("set website: %w", err)
	}
	r.log.Info("recovered website",
		"place_id", placeID,
		"website", chosen.URL,
		"method", chosen.Method)
	return chosen.URL, nil
}

func (r *Recoverer) propose(ctx context.Context, venue *domain.Venue) []domain.RecoveryCandidate {
	var proposals []domain.RecoveryCandidate
	seen := map[string]bool{}

	add := func(rawURL string, confidence float64, method string) {
		if rawURL == "" || seen[rawURL] || isSocial(rawURL) || isLinkHub(rawURL) {
			return
		}
		seen[rawURL] = true
		proposals = append(proposals, domain.RecoveryCandidate{
			PlaceID:    venue.PlaceID,
			URL:        rawURL,
			Confidence: confidence,
			Method:     method,
		})
	}

	if venue.Email != nil {
		add(EmailDomainCandidate(*venue.Email), emailDomainConfidence, domain.RecoveryMethodEmailDomain)
	}

	if r.enrichments != nil {
		enrichment, err := r.enrichments.Get(ctx, venue.PlaceID)
		if err != nil {
			r.log.Debug("enrichment lookup failed during recovery",
				"place_id", venue.PlaceID,
				"error", err)
		} else if enrichment != nil && enrichment.ContactDetails != nil {
			for _, social := range enrichment.ContactDetails.Social {
				add(SocialHint(social), socialHintConfidence, domain.RecoveryMethodSocialHint)
			}
		}
	}

	return proposals
}

// EmailDomainCandidate maps a venue email to its domain's canonical https
// homepage. Returns "" when the address or domain is unusable.
func EmailDomainCandidate(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	dom := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if !domainPattern.MatchString(dom) {
		return ""
	}
	return urlutil.CanonicalHomepage(dom)
}

// SocialHint extracts a homepage URL embedded in a social profile URL's query
// string. Most platforms expose nothing there, so this usually returns "".
func SocialHint(profileURL string) string {
	if !isSocial(profileURL) {
		return ""
	}
	parsed, err := url.Parse(strings.TrimSpace(profileURL))
	if err != nil || parsed.RawQuery == "" {
		return ""
	}
	query, err := url.QueryUnescape(parsed.RawQuery)
	if err != nil {
		query = parsed.RawQuery
	}
	embedded := embeddedURLPatt.FindString(query)
	if embedded == "" || isSocial(embedded) || isLinkHub(embedded) {
		return ""
	}
	return urlutil.CanonicalHomepage(embedded)
}

func isSocial(rawURL string) bool {
	return urlutil.HostMatchesAny(rawURL, socialHosts)
}

func isLinkHub(rawURL string) bool {
	return urlutil.HostMatchesAny(rawURL, linkHubHosts)
}
