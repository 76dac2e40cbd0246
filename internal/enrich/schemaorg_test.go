package enrich_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/venuecrawl/internal/domain"
	"github.com/jonesrussell/venuecrawl/internal/enrich"
)

const restaurantJSONLD = `
<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Restaurant",
  "name": "Trattoria Roma",
  "telephone": "+39 06 1234567",
  "email": "info@trattoriaroma.it",
  "url": "https://trattoriaroma.it",
  "sameAs": ["https://facebook.com/trattoriaroma", "https://instagram.com/trattoriaroma"],
  "priceRange": "€€",
  "menu": "https://trattoriaroma.it/menu",
  "description": "Family-run trattoria serving Roman classics since 1962 in the heart of Trastevere.",
  "openingHoursSpecification": [
    {
      "@type": "OpeningHoursSpecification",
      "dayOfWeek": ["Monday", "Tuesday"],
      "opens": "12:00",
      "closes": "23:00"
    },
    {
      "@type": "OpeningHoursSpecification",
      "dayOfWeek": "https://schema.org/Sunday",
      "opens": "9.00",
      "closes": "1500"
    }
  ]
}
</script>
</head><body></body></html>`

func TestParseSchemaOrg_Restaurant(t *testing.T) {
	t.Parallel()

	facts := enrich.ParseSchemaOrg(restaurantJSONLD)
	require.NotNil(t, facts.Contact)

	assert.Equal(t, "+39 06 1234567", facts.Contact.Phone)
	assert.Equal(t, "info@trattoriaroma.it", facts.Contact.Email)
	assert.Equal(t, "https://trattoriaroma.it", facts.Contact.Website)
	assert.Equal(t, []string{
		"https://facebook.com/trattoriaroma",
		"https://instagram.com/trattoriaroma",
	}, facts.Contact.Social)

	assert.Equal(t, "€€", facts.PriceRange)
	assert.Equal(t, "https://trattoriaroma.it/menu", facts.MenuURL)
	assert.Contains(t, facts.Description, "Family-run trattoria")

	require.Len(t, facts.Hours, 3)
	assert.Equal(t, [][2]string{{"12:00", "23:00"}}, facts.Hours["mon"])
	assert.Equal(t, [][2]string{{"12:00", "23:00"}}, facts.Hours["tue"])
	assert.Equal(t, [][2]string{{"09:00", "15:00"}}, facts.Hours["sun"])
}

func TestParseSchemaOrg_HotelAmenitiesAndOffers(t *testing.T) {
	t.Parallel()

	html := `
<script type="application/ld+json">
{
  "@type": "Hotel",
  "name": "Seaside Lodge",
  "amenityFeature": [
    {"@type": "LocationFeatureSpecification", "name": "Free WiFi"},
    {"@type": "LocationFeatureSpecification", "name": "Parking"},
    {"@type": "LocationFeatureSpecification", "name": "Free WiFi"}
  ],
  "offers": {"@type": "Offer", "price": 120, "priceCurrency": "EUR", "category": "Double room"}
}
</script>`

	facts := enrich.ParseSchemaOrg(html)
	assert.Equal(t, []string{"Free WiFi", "Parking"}, facts.Amenities)
	assert.Equal(t, "Double room: EUR 120", facts.Fees)
}

func TestParseSchemaOrg_TopLevelArrayAndMalformedBlock(t *testing.T) {
	t.Parallel()

	html := `
<script type="application/ld+json">not json at all</script>
<script type="application/ld+json">
[
  {"@type": "Museum", "telephone": "020 7946 0001"},
  {"no_type": true}
]
</script>`

	facts := enrich.ParseSchemaOrg(html)
	require.NotNil(t, facts.Contact)
	assert.Equal(t, "020 7946 0001", facts.Contact.Phone)
}

func TestParseSchemaOrg_DayOfWeekObject(t *testing.T) {
	t.Parallel()

	html := `
<script type="application/ld+json">
{
  "@type": "Cafe",
  "openingHoursSpecification": [{
    "dayOfWeek": {"@type": "DayOfWeek", "name": "Saturday"},
    "opens": "0800",
    "closes": "14:30"
  }]
}
</script>`

	facts := enrich.ParseSchemaOrg(html)
	assert.Equal(t, domain.Hours{"sat": {{"08:00", "14:30"}}}, facts.Hours)
}

func TestParseSchemaOrg_ShortDescriptionIgnored(t *testing.T) {
	t.Parallel()

	html := `
<script type="application/ld+json">
{"@type": "Bar", "description": "A bar."}
</script>`

	facts := enrich.ParseSchemaOrg(html)
	assert.Empty(t, facts.Description)
}

func TestParseSchemaOrg_NoJSONLD(t *testing.T) {
	t.Parallel()

	facts := enrich.ParseSchemaOrg("<html><body><p>plain page</p></body></html>")
	assert.True(t, facts.IsEmpty())
}
