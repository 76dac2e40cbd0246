package enrich

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/venuecrawl/internal/domain"
)

// dayAliases maps schema.org day spellings to the canonical three-letter
// keys.
var dayAliases = map[string]string{
	"monday": "mon", "mon": "mon", "mo": "mon",
	"tuesday": "tue", "tue": "tue", "tu": "tue",
	"wednesday": "wed", "wed": "wed", "we": "wed",
	"thursday": "thu", "thu": "thu", "th": "thu",
	"friday": "fri", "fri": "fri", "fr": "fri",
	"saturday": "sat", "sat": "sat", "sa": "sat",
	"sunday": "sun", "sun": "sun", "su": "sun",
}

var timePattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// minSchemaDescriptionLen filters out stub descriptions.
const minSchemaDescriptionLen = 30

// ParseSchemaOrg extracts venue facts from the JSON-LD blocks embedded in a
// page. Multiple blocks are merged: hours union, social union, scalars
// last-writer within the page.
func ParseSchemaOrg(html string) *Facts {
	facts := &Facts{}
	var social []string

	for _, block := range collectJSONLD(html) {
		if len(typesOf(block)) == 0 {
			continue
		}

		social = append(social, parseContact(block, facts)...)

		if desc, ok := block["description"].(string); ok {
			if trimmed := strings.TrimSpace(desc); len(trimmed) >= minSchemaDescriptionLen {
				facts.Description = trimmed
			}
		}
		if priceRange, ok := block["priceRange"].(string); ok && strings.TrimSpace(priceRange) != "" {
			facts.PriceRange = strings.TrimSpace(priceRange)
		}
		if menuURL := parseMenuURL(block); menuURL != "" {
			facts.MenuURL = menuURL
		}

		if hours := parseOpeningHours(coerceList(block["openingHoursSpecification"])); len(hours) > 0 {
			if facts.Hours == nil {
				facts.Hours = domain.Hours{}
			}
			for day, ranges := range hours {
				facts.Hours[day] = ranges
			}
		}

		if amenities := parseAmenities(coerceList(block["amenityFeature"])); len(amenities) > 0 {
			facts.Amenities = unionSorted(facts.Amenities, amenities)
		}

		offers := block["offers"]
		if offers == nil {
			offers = block["aggregateOffer"]
		}
		if fees := parseOffers(offers); fees != "" {
			facts.Fees = fees
		}
	}

	if len(social) > 0 {
		if facts.Contact == nil {
			facts.Contact = &domain.ContactDetails{}
		}
		facts.Contact.Social = dedupeKeepOrder(social)
	}
	return facts
}

// collectJSONLD parses every <script type="application/ld+json"> block,
// flattening top-level arrays. Malformed blocks are skipped.
func collectJSONLD(html string) []map[string]any {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var blocks []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if jsonErr := json.Unmarshal([]byte(s.Text()), &data); jsonErr != nil {
			return
		}
		for _, item := range coerceList(data) {
			if obj, ok := item.(map[string]any); ok {
				blocks = append(blocks, obj)
			}
		}
	})
	return blocks
}

func typesOf(block map[string]any) []string {
	var types []string
	for _, t := range coerceList(block["@type"]) {
		if s, ok := t.(string); ok {
			types = append(types, strings.ToLower(s))
		}
	}
	return types
}

// parseContact fills phone/email/website from a block and returns its sameAs
// links for social aggregation.
func parseContact(block map[string]any, facts *Facts) []string {
	tel, _ := block["telephone"].(string)
	if tel == "" {
		tel, _ = block["tel"].(string)
	}
	email, _ := block["email"].(string)
	website, _ := block["url"].(string)

	var social []string
	for _, s := range coerceList(block["sameAs"]) {
		if link, ok := s.(string); ok && strings.TrimSpace(link) != "" {
			social = append(social, strings.TrimSpace(link))
		}
	}

	if tel == "" && email == "" && website == "" && len(social) == 0 {
		return nil
	}

	if facts.Contact == nil {
		facts.Contact = &domain.ContactDetails{}
	}
	if tel != "" {
		facts.Contact.Phone = strings.TrimSpace(tel)
	}
	if email != "" {
		facts.Contact.Email = strings.TrimSpace(email)
	}
	if website != "" {
		facts.Contact.Website = strings.TrimSpace(website)
	}
	return social
}

func parseMenuURL(block map[string]any) string {
	menu := block["menu"]
	if menu == nil {
		menu = block["hasMenu"]
	}
	switch m := menu.(type) {
	case string:
		return strings.TrimSpace(m)
	case map[string]any:
		if u, ok := m["url"].(string); ok {
			return strings.TrimSpace(u)
		}
	}
	return ""
}

// parseOpeningHours normalizes openingHoursSpecification entries into
// per-day [open, close] ranges. Entries without both times are dropped.
func parseOpeningHours(specs []any) domain.Hours {
	hours := domain.Hours{}
	for _, spec := range specs {
		obj, ok := spec.(map[string]any)
		if !ok {
			continue
		}
		opens := normalizeTime(stringOf(obj["opens"]))
		closes := normalizeTime(stringOf(obj["closes"]))
		if opens == "" || closes == "" {
			continue
		}
		for _, rawDay := range coerceList(obj["dayOfWeek"]) {
			if day := normalizeDay(rawDay); day != "" {
				hours[day] = append(hours[day], [2]string{opens, closes})
			}
		}
	}
	return hours
}

// normalizeTime coerces 9:00 / 9.00 / 0900 forms to zero-padded HH:MM.
// Returns "" when the input is not a valid time of day.
func normalizeTime(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", ":")
	if !strings.Contains(s, ":") && (len(s) == 3 || len(s) == 4) {
		s = s[:len(s)-2] + ":" + s[len(s)-2:]
	}
	if !timePattern.MatchString(s) {
		return ""
	}
	parts := strings.SplitN(s, ":", 2)
	var hh, mm int
	fmt.Sscanf(parts[0], "%d", &hh)
	fmt.Sscanf(parts[1], "%d", &mm)
	return fmt.Sprintf("%02d:%02d", hh, mm)
}

// normalizeDay maps a dayOfWeek value (string, schema.org URL, or DayOfWeek
// object) to a canonical three-letter key. Returns "" when unrecognized.
func normalizeDay(raw any) string {
	if obj, ok := raw.(map[string]any); ok {
		if t, _ := obj["@type"].(string); strings.EqualFold(t, "dayofweek") {
			raw = obj["name"]
		}
	}
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.TrimPrefix(key, "http://schema.org/")
	key = strings.TrimPrefix(key, "https://schema.org/")
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		key = key[idx+1:]
	}
	return dayAliases[key]
}

// parseAmenities pulls names out of amenityFeature entries, deduped in
// order.
func parseAmenities(feats []any) []string {
	var names []string
	for _, f := range feats {
		obj, ok := f.(map[string]any)
		if !ok {
			continue
		}
		name := stringOf(obj["name"])
		if name == "" {
			name = stringOf(obj["propertyID"])
		}
		if name == "" {
			name = stringOf(obj["description"])
		}
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return dedupeKeepOrder(names)
}

// parseOffers joins price and currency from offers into a short fees string.
func parseOffers(offers any) string {
	var parts []string
	for _, o := range coerceList(offers) {
		obj, ok := o.(map[string]any)
		if !ok {
			continue
		}
		price := stringOf(obj["price"])
		if price == "" {
			price = stringOf(obj["lowPrice"])
		}
		currency := stringOf(obj["priceCurrency"])
		if price == "" || currency == "" {
			continue
		}
		category := stringOf(obj["category"])
		if category == "" {
			category = stringOf(obj["name"])
		}
		frag := currency + " " + price
		if category != "" {
			frag = category + ": " + frag
		}
		parts = append(parts, strings.TrimSpace(frag))
	}
	return strings.Join(parts, "; ")
}

func coerceList(x any) []any {
	if x == nil {
		return nil
	}
	if list, ok := x.([]any); ok {
		return list
	}
	return []any{x}
}

// stringOf renders a scalar JSON value as a string; numbers lose no
// precision for the integer prices seen in practice.
func stringOf(x any) string {
	switch v := x.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

func dedupeKeepOrder(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

func unionSorted(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
