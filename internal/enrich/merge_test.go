package enrich_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/enrich"
)

func TestBuildEnrichment_DedicatedPageBeatsHomepage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	pages := []enrich.PageFacts{
		{
			URL:      "https://example.com/",
			PageType: domain.PageTypeHomepage,
			Heuristic: &enrich.Facts{
				Contact: &domain.ContactDetails{Phone: "+1000000000"},
			},
		},
		{
			URL:      "https://example.com/contact",
			PageType: domain.PageTypeContact,
			Heuristic: &enrich.Facts{
				Contact: &domain.ContactDetails{Phone: "+1999999999", Email: "hi@example.com"},
			},
		},
	}

	row, updated := enrich.BuildEnrichment(nil, "place-1", pages, now)

	require.NotNil(t, row.ContactDetails)
	assert.Equal(t, "+1999999999", row.ContactDetails.Phone)
	assert.Equal(t, "hi@example.com", row.ContactDetails.Email)
	assert.Equal(t, []string{domain.FieldContactDetails}, updated)
	require.NotNil(t, row.ContactLastUpdated)
	assert.True(t, row.ContactLastUpdated.Equal(now))
}

func TestBuildEnrichment_SchemaFillsHeuristicHoles(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	pages := []enrich.PageFacts{
		{
			URL:      "https://example.com/",
			PageType: domain.PageTypeHomepage,
			Heuristic: &enrich.Facts{
				Contact: &domain.ContactDetails{Phone: "+1555000111"},
			},
			Schema: &enrich.Facts{
				Contact:     &domain.ContactDetails{Phone: "+1555999999", Website: "https://example.com"},
				Description: "A long standing neighbourhood favourite known for wood-fired pizza and natural wine.",
				PriceRange:  "€€",
			},
		},
	}

	row, updated := enrich.BuildEnrichment(nil, "place-1", pages, now)

	// Heuristic phone wins; schema fills website and the scalars.
	assert.Equal(t, "+1555000111", row.ContactDetails.Phone)
	assert.Equal(t, "https://example.com", row.ContactDetails.Website)
	require.NotNil(t, row.Description)
	assert.Contains(t, *row.Description, "wood-fired pizza")
	require.NotNil(t, row.PriceRange)
	assert.Equal(t, "€€", *row.PriceRange)

	assert.Equal(t, []string{
		domain.FieldContactDetails,
		domain.FieldDescription,
		domain.FieldPriceRange,
	}, updated)
}

func TestBuildEnrichment_HoursUnion(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	pages := []enrich.PageFacts{
		{
			URL:      "https://example.com/hours",
			PageType: domain.PageTypeHours,
			Heuristic: &enrich.Facts{
				Hours: domain.Hours{"mon": {{"09:00", "17:00"}}},
			},
			Schema: &enrich.Facts{
				Hours: domain.Hours{
					"mon": {{"09:00", "17:00"}},
					"sat": {{"10:00", "14:00"}},
				},
			},
		},
	}

	row, _ := enrich.BuildEnrichment(nil, "place-1", pages, now)

	assert.Equal(t, [][2]string{{"09:00", "17:00"}}, row.Hours["mon"])
	assert.Equal(t, [][2]string{{"10:00", "14:00"}}, row.Hours["sat"])
}

func TestBuildEnrichment_PreservesExistingFields(t *testing.T) {
	t.Parallel()

	then := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	oldDesc := "A historic coaching inn on the market square with rooms above the bar and a walled garden."
	existing := &domain.Enrichment{
		PlaceID:                "place-1",
		Description:            &oldDesc,
		DescriptionLastUpdated: &then,
		Hours:                  domain.Hours{"fri": {{"16:00", "23:00"}}},
		HoursLastUpdated:       &then,
		Sources:                domain.StringList{"https://example.com/old"},
	}

	pages := []enrich.PageFacts{
		{
			URL:      "https://example.com/hours",
			PageType: domain.PageTypeHours,
			Heuristic: &enrich.Facts{
				Hours: domain.Hours{"mon": {{"09:00", "17:00"}}},
			},
		},
	}

	row, updated := enrich.BuildEnrichment(existing, "place-1", pages, now)

	// Hours replaced and restamped; description untouched.
	assert.Equal(t, []string{domain.FieldHours}, updated)
	assert.Equal(t, [][2]string{{"09:00", "17:00"}}, row.Hours["mon"])
	require.NotNil(t, row.HoursLastUpdated)
	assert.True(t, row.HoursLastUpdated.Equal(now))

	require.NotNil(t, row.Description)
	assert.Equal(t, oldDesc, *row.Description)
	assert.True(t, row.DescriptionLastUpdated.Equal(then))

	assert.Equal(t, domain.StringList{
		"https://example.com/old",
		"https://example.com/hours",
	}, row.Sources)
}

func TestBuildEnrichment_ListFieldsUnionAcrossPages(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	pages := []enrich.PageFacts{
		{
			URL:      "https://example.com/",
			PageType: domain.PageTypeHomepage,
			Schema:   &enrich.Facts{Amenities: []string{"Parking", "Free WiFi"}},
		},
		{
			URL:      "https://example.com/about",
			PageType: domain.PageTypeAbout,
			Schema:   &enrich.Facts{Amenities: []string{"Free WiFi", "Pool"}},
		},
	}

	row, _ := enrich.BuildEnrichment(nil, "place-1", pages, now)
	assert.Equal(t, domain.StringList{"Free WiFi", "Parking", "Pool"}, row.Amenities)
}

func TestBuildEnrichment_NoFacts(t *testing.T) {
	t.Parallel()

	row, updated := enrich.BuildEnrichment(nil, "place-1", []enrich.PageFacts{
		{URL: "https://example.com/", PageType: domain.PageTypeHomepage, Heuristic: &enrich.Facts{}},
	}, time.Now())

	assert.Empty(t, updated)
	assert.Equal(t, "place-1", row.PlaceID)
	assert.Nil(t, row.Hours)
	assert.Nil(t, row.ContactDetails)
}
