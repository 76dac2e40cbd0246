package enrich

import (
	"regexp"
	"strings"

	"github.com/jonesrussell/venuecrawl/internal/domain"
)

var (
	dayPattern        = regexp.MustCompile(`(?i)\b(mon|tue|wed|thu|fri|sat|sun)(?:day)?\b`)
	timeRangePattern  = regexp.MustCompile(`(?i)(\d{1,2}[:.h]?\d{2})\s*(?:–|-|to|till|until|—)\s*(\d{1,2}[:.h]?\d{2})`)
	phonePattern      = regexp.MustCompile(`(\+?\d[\d\-\s()]{6,}\d)`)
	emailPattern      = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	currencyPattern   = regexp.MustCompile(`([€£$])\s?(\d+(?:[.,]\d{1,2})?)`)
	priceLabelPattern = regexp.MustCompile(`(?i)price\s*range\s*[:\-]\s*([€£$]{1,4})`)
	nonPhoneChars     = regexp.MustCompile(`[^\d+]`)
)

// minPhoneDigits is the minimum digit count for a phone match to count.
const minPhoneDigits = 7

// Description line length bounds for the fallback summary.
const (
	minDescriptionLen = 60
	maxDescriptionLen = 300
)

// maxFeeLineLen caps the stored fee line.
const maxFeeLineLen = 200

// ExtractFromText pulls facts out of a page's cleaned text using light
// heuristics, keyed by the page's type: hours from hours-like pages, fees
// from fee pages, menu URL and price range from the menu page.
func ExtractFromText(pageType, pageURL, text string) *Facts {
	facts := &Facts{}
	text = strings.TrimSpace(text)
	pageType = strings.ToLower(pageType)

	if text == "" {
		// An empty menu page still tells us where the menu lives.
		if pageType == domain.PageTypeMenu && pageURL != "" {
			facts.MenuURL = pageURL
		}
		return facts
	}

	if email := emailPattern.FindString(text); email != "" {
		ensureContact(facts).Email = email
	}
	if m := phonePattern.FindString(text); m != "" {
		phone := nonPhoneChars.ReplaceAllString(m, "")
		if len(phone) >= minPhoneDigits {
			ensureContact(facts).Phone = phone
		}
	}

	switch pageType {
	case domain.PageTypeHours, domain.PageTypeContact, domain.PageTypeAbout, domain.PageTypeHomepage:
		facts.Hours = extractHours(text)
	}

	switch pageType {
	case domain.PageTypeFees, domain.PageTypeAbout, domain.PageTypeHomepage:
		facts.Fees = extractFeeLine(text)
	}

	if pageType == domain.PageTypeMenu {
		facts.MenuURL = pageURL
		facts.PriceRange = extractPriceRange(text)
	}

	facts.Description = extractDescription(text)
	return facts
}

func ensureContact(f *Facts) *domain.ContactDetails {
	if f.Contact == nil {
		f.Contact = &domain.ContactDetails{}
	}
	return f.Contact
}

// extractHours scans lines containing a day name for time ranges. The first
// day token on the line gets the attribution.
func extractHours(text string) domain.Hours {
	hours := domain.Hours{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		dayMatch := dayPattern.FindStringSubmatch(line)
		if dayMatch == nil {
			continue
		}
		day := strings.ToLower(dayMatch[1])

		for _, m := range timeRangePattern.FindAllStringSubmatch(line, -1) {
			open := normalizeTime(strings.NewReplacer("h", ":").Replace(strings.ToLower(m[1])))
			closeT := normalizeTime(strings.NewReplacer("h", ":").Replace(strings.ToLower(m[2])))
			if open == "" || closeT == "" {
				continue
			}
			hours[day] = append(hours[day], [2]string{open, closeT})
		}
	}
	if len(hours) == 0 {
		return nil
	}
	return hours
}

// extractFeeLine returns the shortest line mentioning a currency amount, to
// avoid pulling in walls of text.
func extractFeeLine(text string) string {
	best := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !currencyPattern.MatchString(line) {
			continue
		}
		if best == "" || len(line) < len(best) {
			best = line
		}
	}
	if len(best) > maxFeeLineLen {
		best = best[:maxFeeLineLen]
	}
	return strings.TrimSpace(best)
}

// extractPriceRange reads an explicit "price range: $$" label, falling back
// to bucketing the average of prices found on the page.
func extractPriceRange(text string) string {
	if m := priceLabelPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	matches := currencyPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	currency := matches[0][1]

	seen := make(map[float64]bool)
	var sum float64
	for _, m := range matches {
		val := parsePrice(m[2])
		if val > 0 && !seen[val] {
			seen[val] = true
			sum += val
		}
	}
	if len(seen) == 0 {
		return ""
	}
	avg := sum / float64(len(seen))

	switch {
	case avg < 10:
		return currency
	case avg < 25:
		return strings.Repeat(currency, 2)
	case avg < 45:
		return strings.Repeat(currency, 3)
	default:
		return strings.Repeat(currency, 4)
	}
}

func parsePrice(s string) float64 {
	s = strings.ReplaceAll(s, ",", ".")
	var val float64
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			frac := 0.0
			scale := 0.1
			for j := i + 1; j < len(s); j++ {
				frac += float64(s[j]-'0') * scale
				scale /= 10
			}
			return val + frac
		}
		val = val*10 + float64(s[i]-'0')
	}
	return val
}

// extractDescription takes the first line of sensible summary length.
func extractDescription(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) >= minDescriptionLen && len(line) <= maxDescriptionLen {
			return line
		}
	}
	return ""
}
