// Package domain provides domain models used across the application.
package domain

import "time"

// Venue is a point of interest from upstream ingestion. place_id is the
// stable primary key; website may be NULL until recovery fills it in.
type Venue struct {
	PlaceID              string     `db:"place_id"              json:"place_id"`
	Name                 string     `db:"name"                  json:"name"`
	CategoryName         *string    `db:"category_name"         json:"category_name,omitempty"`
	Latitude             float64    `db:"latitude"              json:"latitude"`
	Longitude            float64    `db:"longitude"             json:"longitude"`
	PopularityConfidence *float64   `db:"popularity_confidence" json:"popularity_confidence,omitempty"`
	LastEnrichedAt       *time.Time `db:"last_enriched_at"      json:"last_enriched_at,omitempty"`
	Website              *string    `db:"website"               json:"website,omitempty"`
	Email                *string    `db:"email"                 json:"email,omitempty"`
	Phone                *string    `db:"phone"                 json:"phone,omitempty"`
	AddressFull          *string    `db:"address_full"          json:"address_full,omitempty"`
}

// HasWebsite reports whether the venue has a non-empty homepage URL.
func (v *Venue) HasWebsite() bool {
	return v.Website != nil && *v.Website != ""
}

// RecoveryCandidate is a proposed homepage URL for a venue missing one.
type RecoveryCandidate struct {
	PlaceID    string  `db:"place_id"   json:"place_id"`
	URL        string  `db:"url"        json:"url"`
	Confidence float64 `db:"confidence" json:"confidence"`
	Method     string  `db:"method"     json:"method"`
	IsChosen   bool    `db:"is_chosen"  json:"is_chosen"`
}

// Recovery candidate methods.
const (
	RecoveryMethodEmailDomain = "email_domain"
	RecoveryMethodSocialHint  = "social_hint"
)
