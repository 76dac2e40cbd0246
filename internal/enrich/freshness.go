package enrich

import (
	"sort"
	"strings"
	"time"

	"github.com/jonesrussell/venuecrawl/internal/config"
	"github.com/jonesrussell/venuecrawl/internal/domain"
)

// Category groups for field requirements.
const (
	GroupRestaurant    = "restaurant"
	GroupAccommodation = "accommodation"
	GroupAttraction    = "attraction"
	GroupGeneral       = "general"
)

// Freshness field keys reported to API consumers.
const (
	FreshFieldAddress     = "address"
	FreshFieldHours       = "opening_hours"
	FreshFieldContact     = "contact_details"
	FreshFieldDescription = "description"
	FreshFieldFeatures    = "features"
	FreshFieldMenu        = "menu"
	FreshFieldPriceRange  = "price_range"
	FreshFieldAmenities   = "amenities"
	FreshFieldFees        = "fees"
)

var restaurantHints = []string{
	"restaurant", "café", "cafe", "bar", "pub", "diner", "bistro",
	"pizzeria", "coffee", "bakery",
}

var accommodationHints = []string{
	"hotel", "hostel", "motel", "guest house", "guesthouse", "bnb", "b&b",
	"lodge", "resort", "campground",
}

var attractionHints = []string{
	"attraction", "museum", "gallery", "sight", "landmark", "monument",
	"zoo", "aquarium", "park", "castle", "cathedral",
}

// Categorize maps a free-text category name to a requirement group.
func Categorize(categoryName string) string {
	c := strings.ToLower(categoryName)
	if c == "" {
		return GroupGeneral
	}
	for _, hint := range restaurantHints {
		if strings.Contains(c, hint) {
			return GroupRestaurant
		}
	}
	for _, hint := range accommodationHints {
		if strings.Contains(c, hint) {
			return GroupAccommodation
		}
	}
	for _, hint := range attractionHints {
		if strings.Contains(c, hint) {
			return GroupAttraction
		}
	}
	return GroupGeneral
}

// Report summarizes per-field freshness for one venue.
type Report struct {
	PlaceID        string     `json:"place_id"`
	CategoryGroup  string     `json:"category_group"`
	RequiredFields []string   `json:"required_fields"`
	FreshFields    []string   `json:"fresh_fields"`
	StaleFields    []string   `json:"stale_fields"`
	MissingFields  []string   `json:"missing_fields"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
}

// NeedsCrawl reports whether any required field is missing or stale.
func (r *Report) NeedsCrawl() bool {
	return len(r.MissingFields) > 0 || len(r.StaleFields) > 0
}

// Evaluator computes freshness reports against configured windows.
type Evaluator struct {
	fresh config.FreshConfig
}

// NewEvaluator creates a freshness evaluator.
func NewEvaluator(fresh config.FreshConfig) *Evaluator {
	return &Evaluator{fresh: fresh}
}

// requiredFor returns the required field keys for a category group. Address
// is checked on the venue row, the rest on the enrichment row.
func requiredFor(group string) []string {
	base := []string{FreshFieldAddress, FreshFieldContact, FreshFieldHours, FreshFieldDescription}
	switch group {
	case GroupRestaurant:
		return append(base, FreshFieldMenu, FreshFieldPriceRange)
	case GroupAccommodation:
		return append(base, FreshFieldPriceRange, FreshFieldAmenities)
	case GroupAttraction:
		return append(base, FreshFieldFeatures, FreshFieldFees)
	default:
		return base
	}
}

// Evaluate builds a freshness report for a venue. enrichment may be nil for
// venues never crawled; every enrichment-backed required field then reports
// missing.
func (e *Evaluator) Evaluate(venue *domain.Venue, enrichment *domain.Enrichment, now time.Time) *Report {
	group := GroupGeneral
	if venue != nil && venue.CategoryName != nil {
		group = Categorize(*venue.CategoryName)
	}

	report := &Report{
		CategoryGroup:  group,
		RequiredFields: requiredFor(group),
	}
	if venue != nil {
		report.PlaceID = venue.PlaceID
		report.LastUpdated = venue.LastEnrichedAt
	}

	required := make(map[string]bool, len(report.RequiredFields))
	for _, f := range report.RequiredFields {
		required[f] = true
	}

	mark := func(field string, present bool, lastUpdated *time.Time, window time.Duration) {
		if !required[field] {
			return
		}
		switch {
		case !present:
			report.MissingFields = append(report.MissingFields, field)
		case e.isStale(lastUpdated, window, now):
			report.StaleFields = append(report.StaleFields, field)
		default:
			report.FreshFields = append(report.FreshFields, field)
		}
	}

	// Address lives on the venue row and has no freshness window.
	if venue != nil && venue.AddressFull != nil && *venue.AddressFull != "" {
		report.FreshFields = append(report.FreshFields, FreshFieldAddress)
	} else {
		report.MissingFields = append(report.MissingFields, FreshFieldAddress)
	}

	var row domain.Enrichment
	if enrichment != nil {
		row = *enrichment
	}

	mark(FreshFieldHours, len(row.Hours) > 0, row.HoursLastUpdated, e.fresh.HoursWindow())
	mark(FreshFieldContact, !row.ContactDetails.IsEmpty(), row.ContactLastUpdated, e.fresh.ContactWindow())
	mark(FreshFieldDescription, strPresent(row.Description), row.DescriptionLastUpdated, e.fresh.GeneralWindow())

	switch group {
	case GroupRestaurant:
		mark(FreshFieldMenu, strPresent(row.MenuURL), row.MenuLastUpdated, e.fresh.ContactWindow())
		mark(FreshFieldPriceRange, strPresent(row.PriceRange), row.PriceLastUpdated, e.fresh.ContactWindow())
	case GroupAccommodation:
		mark(FreshFieldPriceRange, strPresent(row.PriceRange), row.PriceLastUpdated, e.fresh.ContactWindow())
		mark(FreshFieldAmenities, len(row.Amenities) > 0, row.AmenitiesLastUpdated, e.fresh.GeneralWindow())
	case GroupAttraction:
		mark(FreshFieldFeatures, len(row.Features) > 0, row.FeaturesLastUpdated, e.fresh.GeneralWindow())
		mark(FreshFieldFees, strPresent(row.Fees), row.FeesLastUpdated, e.fresh.ContactWindow())
	}

	sort.Strings(report.FreshFields)
	sort.Strings(report.StaleFields)
	sort.Strings(report.MissingFields)
	return report
}

// ShouldTriggerRealtime decides whether a realtime crawl is warranted: no
// enrichment row, or any required field missing or stale. Venues without a
// website never trigger.
func (e *Evaluator) ShouldTriggerRealtime(venue *domain.Venue, enrichment *domain.Enrichment, now time.Time) (bool, *Report) {
	if venue == nil || !venue.HasWebsite() {
		report := e.Evaluate(venue, enrichment, now)
		return false, report
	}
	report := e.Evaluate(venue, enrichment, now)
	return enrichment == nil || report.NeedsCrawl(), report
}

func (e *Evaluator) isStale(lastUpdated *time.Time, window time.Duration, now time.Time) bool {
	if lastUpdated == nil {
		return true
	}
	return lastUpdated.Before(now.Add(-window))
}

func strPresent(s *string) bool {
	return s != nil && *s != ""
}
