package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// scanJSONB converts a JSONB column value into raw bytes for unmarshalling.
func scanJSONB(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, errors.New("unsupported type for JSONB column")
	}
}

// StringList is a JSONB-backed ordered list of strings.
// It implements sql.Scanner and driver.Valuer so repositories can read and
// write columns like enrichment.sources and scraped_pages.redirect_chain.
type StringList []string

// Scan implements the sql.Scanner interface.
func (l *StringList) Scan(value any) error {
	data, err := scanJSONB(value)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// Value implements the driver.Valuer interface.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Hours maps a lowercase three-letter weekday (mon..sun) to an ordered list
// of [open, close] ranges in zero-padded HH:MM.
type Hours map[string][][2]string

// Scan implements the sql.Scanner interface.
func (h *Hours) Scan(value any) error {
	data, err := scanJSONB(value)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*h = nil
		return nil
	}
	return json.Unmarshal(data, h)
}

// Value implements the driver.Valuer interface.
func (h Hours) Value() (driver.Value, error) {
	if h == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(h)
}
