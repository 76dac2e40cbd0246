package enrich

import (
	"sort"
	"time"

	"github.com/jonesrussell/venuecrawl/internal/domain"
)

// PageFacts is one fetched page's extraction input to the merger.
type PageFacts struct {
	URL       string
	PageType  string
	Heuristic *Facts
	Schema    *Facts
}

// mergePriority orders pages so dedicated pages contribute before the
// homepage: a phone number on /contact beats one buried in homepage text.
var mergePriority = map[string]int{
	domain.PageTypeHours:    0,
	domain.PageTypeMenu:     1,
	domain.PageTypeContact:  2,
	domain.PageTypeFees:     3,
	domain.PageTypeAbout:    4,
	domain.PageTypeHomepage: 5,
	domain.PageTypeOther:    9,
}

// merger accumulates facts with per-field source attribution.
type merger struct {
	acc     Facts
	sources map[string][]string
	updated map[string]bool
}

// BuildEnrichment merges extractions from a crawl's pages into the venue's
// enrichment row. Precedence: dedicated-page heuristics, then schema.org,
// then homepage/about heuristics. Hours and list fields union-merge; contact
// sub-fields and scalars are first-writer. Fields untouched by this crawl
// keep their existing values and timestamps. Returns the merged row and the
// sorted list of updated field names.
func BuildEnrichment(existing *domain.Enrichment, placeID string, pages []PageFacts, now time.Time) (*domain.Enrichment, []string) {
	m := &merger{
		sources: make(map[string][]string),
		updated: make(map[string]bool),
	}

	ordered := make([]PageFacts, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priorityOf(ordered[i].PageType) < priorityOf(ordered[j].PageType)
	})

	// Pass 1: per-page heuristics, dedicated pages first.
	for _, page := range ordered {
		m.takeAll(page.Heuristic, page.URL)
	}
	// Pass 2: schema.org complements the holes and unions the list fields.
	for _, page := range ordered {
		m.takeAll(page.Schema, page.URL)
	}

	return m.finish(existing, placeID, now), m.updatedFields()
}

func priorityOf(pageType string) int {
	if p, ok := mergePriority[pageType]; ok {
		return p
	}
	return 9
}

// takeAll folds one extraction into the accumulator.
func (m *merger) takeAll(facts *Facts, url string) {
	if facts == nil {
		return
	}

	if len(facts.Hours) > 0 {
		m.acc.Hours = mergeHours(m.acc.Hours, facts.Hours)
		m.mark(domain.FieldHours, url)
	}

	if !facts.Contact.IsEmpty() {
		if m.mergeContact(facts.Contact) {
			m.mark(domain.FieldContactDetails, url)
		}
	}

	if len(facts.Features) > 0 {
		m.acc.Features = unionSorted(m.acc.Features, facts.Features)
		m.mark(domain.FieldFeatures, url)
	}
	if len(facts.Amenities) > 0 {
		m.acc.Amenities = unionSorted(m.acc.Amenities, facts.Amenities)
		m.mark(domain.FieldAmenities, url)
	}

	if facts.Description != "" && m.acc.Description == "" {
		m.acc.Description = facts.Description
		m.mark(domain.FieldDescription, url)
	}
	if facts.MenuURL != "" && m.acc.MenuURL == "" {
		m.acc.MenuURL = facts.MenuURL
		m.mark(domain.FieldMenuURL, url)
	}
	if facts.PriceRange != "" && m.acc.PriceRange == "" {
		m.acc.PriceRange = facts.PriceRange
		m.mark(domain.FieldPriceRange, url)
	}
	if facts.Fees != "" && m.acc.Fees == "" {
		m.acc.Fees = facts.Fees
		m.mark(domain.FieldFees, url)
	}
}

// mergeContact fills empty sub-fields only (first writer wins) and unions
// social links. Reports whether anything changed.
func (m *merger) mergeContact(incoming *domain.ContactDetails) bool {
	if m.acc.Contact == nil {
		m.acc.Contact = &domain.ContactDetails{}
	}
	changed := false
	if m.acc.Contact.Phone == "" && incoming.Phone != "" {
		m.acc.Contact.Phone = incoming.Phone
		changed = true
	}
	if m.acc.Contact.Email == "" && incoming.Email != "" {
		m.acc.Contact.Email = incoming.Email
		changed = true
	}
	if m.acc.Contact.Website == "" && incoming.Website != "" {
		m.acc.Contact.Website = incoming.Website
		changed = true
	}
	if len(incoming.Social) > 0 {
		before := len(m.acc.Contact.Social)
		m.acc.Contact.Social = dedupeKeepOrder(append(m.acc.Contact.Social, incoming.Social...))
		changed = changed || len(m.acc.Contact.Social) != before
	}
	return changed
}

func (m *merger) mark(field, url string) {
	m.updated[field] = true
	for _, existing := range m.sources[field] {
		if existing == url {
			return
		}
	}
	m.sources[field] = append(m.sources[field], url)
}

// mergeHours unions day ranges, deduplicating identical [open, close] pairs.
func mergeHours(a, b domain.Hours) domain.Hours {
	if a == nil && b == nil {
		return nil
	}
	out := domain.Hours{}
	for _, src := range []domain.Hours{a, b} {
		for day, ranges := range src {
			for _, r := range ranges {
				if !containsRange(out[day], r) {
					out[day] = append(out[day], r)
				}
			}
		}
	}
	return out
}

func containsRange(ranges [][2]string, r [2]string) bool {
	for _, existing := range ranges {
		if existing == r {
			return true
		}
	}
	return false
}

// finish overlays the accumulated facts onto the existing row, stamping only
// the fields this crawl updated.
func (m *merger) finish(existing *domain.Enrichment, placeID string, now time.Time) *domain.Enrichment {
	out := &domain.Enrichment{PlaceID: placeID}
	if existing != nil {
		*out = *existing
		out.PlaceID = placeID
	}

	if m.updated[domain.FieldHours] {
		out.Hours = m.acc.Hours
		out.HoursLastUpdated = &now
	}
	if m.updated[domain.FieldContactDetails] {
		out.ContactDetails = m.acc.Contact
		out.ContactLastUpdated = &now
	}
	if m.updated[domain.FieldDescription] {
		out.Description = &m.acc.Description
		out.DescriptionLastUpdated = &now
	}
	if m.updated[domain.FieldFeatures] {
		out.Features = m.acc.Features
		out.FeaturesLastUpdated = &now
	}
	if m.updated[domain.FieldMenuURL] {
		out.MenuURL = &m.acc.MenuURL
		out.MenuLastUpdated = &now
	}
	if m.updated[domain.FieldPriceRange] {
		out.PriceRange = &m.acc.PriceRange
		out.PriceLastUpdated = &now
	}
	if m.updated[domain.FieldAmenities] {
		out.Amenities = m.acc.Amenities
		out.AmenitiesLastUpdated = &now
	}
	if m.updated[domain.FieldFees] {
		out.Fees = &m.acc.Fees
		out.FeesLastUpdated = &now
	}

	out.Sources = mergeSources(out.Sources, m.contributingURLs())
	return out
}

// contributingURLs flattens per-field sources in field-name order for
// deterministic output.
func (m *merger) contributingURLs() []string {
	fields := make([]string, 0, len(m.sources))
	for field := range m.sources {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var urls []string
	for _, field := range fields {
		urls = append(urls, m.sources[field]...)
	}
	return dedupeKeepOrder(urls)
}

func mergeSources(existing domain.StringList, incoming []string) domain.StringList {
	return domain.StringList(dedupeKeepOrder(append([]string(existing), incoming...)))
}

func (m *merger) updatedFields() []string {
	fields := make([]string, 0, len(m.updated))
	for field := range m.updated {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
