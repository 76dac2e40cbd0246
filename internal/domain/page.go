package domain

import "time"

// Page types describe the role a fetched page plays for a venue.
const (
	PageTypeHomepage = "homepage"
	PageTypeHours    = "hours"
	PageTypeMenu     = "menu"
	PageTypeContact  = "contact"
	PageTypeAbout    = "about"
	PageTypeFees     = "fees"
	PageTypeOther    = "other"
)

// Source methods record how a page URL was obtained.
const (
	SourceMethodDirectURL = "direct_url"
	SourceMethodSearchAPI = "search_api"
	SourceMethodHeuristic = "heuristic"
)

// PageRecord is one row of scraped_pages: append-only audit evidence for a
// single fetch attempt. valid_until is set only when reason is "ok".
// RawHTML is populated only when raw-body persistence is enabled.
type PageRecord struct {
	PageID        int64      `db:"page_id"        json:"page_id"`
	PlaceID       *string    `db:"place_id"       json:"place_id,omitempty"`
	URL           string     `db:"url"            json:"url"`
	FinalURL      string     `db:"final_url"      json:"final_url"`
	PageType      string     `db:"page_type"      json:"page_type"`
	FetchedAt     time.Time  `db:"fetched_at"     json:"fetched_at"`
	ValidUntil    *time.Time `db:"valid_until"    json:"valid_until,omitempty"`
	HTTPStatus    int        `db:"http_status"    json:"http_status"`
	ContentType   *string    `db:"content_type"   json:"content_type,omitempty"`
	ContentHash   *string    `db:"content_hash"   json:"content_hash,omitempty"`
	CleanedText   *string    `db:"cleaned_text"   json:"cleaned_text,omitempty"`
	RawHTML       []byte     `db:"raw_html"       json:"-"`
	SourceMethod  string     `db:"source_method"  json:"source_method"`
	RedirectChain StringList `db:"redirect_chain" json:"redirect_chain,omitempty"`
	Reason        string     `db:"reason"         json:"reason"`
	SizeBytes     int64      `db:"size_bytes"     json:"size_bytes"`
	DurationMs    int64      `db:"duration_ms"    json:"duration_ms"`
	FirstByteMs   int64      `db:"first_byte_ms"  json:"first_byte_ms"`
}

// Text returns the cleaned text or the empty string.
func (p *PageRecord) Text() string {
	if p.CleanedText == nil {
		return ""
	}
	return *p.CleanedText
}
