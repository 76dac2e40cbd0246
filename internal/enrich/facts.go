// Package enrich turns fetched pages into venue facts: a JSON-LD extractor,
// a text-heuristics extractor, a deterministic merger, and a freshness
// evaluator.
package enrich

import "github.com/jonesrussell/venuecrawl/internal/domain"

// Facts is one extractor's yield from a single page. All fields are
// optional; empty values mean the page said nothing about them.
type Facts struct {
	Hours       domain.Hours
	Contact     *domain.ContactDetails
	Description string
	PriceRange  string
	MenuURL     string
	Features    []string
	Amenities   []string
	Fees        string
}

// IsEmpty reports whether the extraction found nothing.
func (f *Facts) IsEmpty() bool {
	return f == nil || (len(f.Hours) == 0 &&
		f.Contact.IsEmpty() &&
		f.Description == "" &&
		f.PriceRange == "" &&
		f.MenuURL == "" &&
		len(f.Features) == 0 &&
		len(f.Amenities) == 0 &&
		f.Fees == "")
}
