package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ContactDetails holds the contact sub-record of an enrichment row.
// Social keeps insertion order; repositories store the whole struct as JSONB.
type ContactDetails struct {
	Phone   string   `json:"phone,omitempty"`
	Email   string   `json:"email,omitempty"`
	Website string   `json:"website,omitempty"`
	Social  []string `json:"social,omitempty"`
}

// IsEmpty reports whether no sub-field carries a value.
func (c *ContactDetails) IsEmpty() bool {
	return c == nil || (c.Phone == "" && c.Email == "" && c.Website == "" && len(c.Social) == 0)
}

// Scan implements the sql.Scanner interface.
func (c *ContactDetails) Scan(value any) error {
	data, err := scanJSONB(value)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*c = ContactDetails{}
		return nil
	}
	return json.Unmarshal(data, c)
}

// Value implements the driver.Valuer interface.
func (c ContactDetails) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Enrichment is the merged, per-field-timestamped body of facts for one
// venue. Field groups carry their own *_last_updated stamp; sources lists
// every page URL that contributed a value.
type Enrichment struct {
	PlaceID string `db:"place_id" json:"place_id"`

	Hours            Hours      `db:"hours"              json:"hours,omitempty"`
	HoursLastUpdated *time.Time `db:"hours_last_updated" json:"hours_last_updated,omitempty"`

	ContactDetails     *ContactDetails `db:"contact_details"      json:"contact_details,omitempty"`
	ContactLastUpdated *time.Time      `db:"contact_last_updated" json:"contact_last_updated,omitempty"`

	Description            *string    `db:"description"              json:"description,omitempty"`
	DescriptionLastUpdated *time.Time `db:"description_last_updated" json:"description_last_updated,omitempty"`

	Features            StringList `db:"features"              json:"features,omitempty"`
	FeaturesLastUpdated *time.Time `db:"features_last_updated" json:"features_last_updated,omitempty"`

	MenuURL         *string    `db:"menu_url"          json:"menu_url,omitempty"`
	MenuLastUpdated *time.Time `db:"menu_last_updated" json:"menu_last_updated,omitempty"`

	PriceRange       *string    `db:"price_range"        json:"price_range,omitempty"`
	PriceLastUpdated *time.Time `db:"price_last_updated" json:"price_last_updated,omitempty"`

	Amenities            StringList `db:"amenities"              json:"amenities,omitempty"`
	AmenitiesLastUpdated *time.Time `db:"amenities_last_updated" json:"amenities_last_updated,omitempty"`

	Fees            *string    `db:"fees"              json:"fees,omitempty"`
	FeesLastUpdated *time.Time `db:"fees_last_updated" json:"fees_last_updated,omitempty"`

	Sources StringList `db:"sources" json:"sources,omitempty"`
}

// Enrichment field names as used in updated_fields lists and freshness
// reports.
const (
	FieldHours          = "hours"
	FieldContactDetails = "contact_details"
	FieldDescription    = "description"
	FieldFeatures       = "features"
	FieldMenuURL        = "menu_url"
	FieldPriceRange     = "price_range"
	FieldAmenities      = "amenities"
	FieldFees           = "fees"
)
