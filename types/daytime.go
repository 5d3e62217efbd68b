package types

import (
	"encoding/json"
	"strings"
	"time"
)

// DateTime wraps a time.Time struct, allowing for improved dateTime JSON compatibility.
// The wire form is ISO 8601 / RFC 3339 in UTC, as required by OCPP-J.
type DateTime struct {
	time.Time
}

// NewDateTime Creates a new DateTime struct, embedding a time.Time struct.
func NewDateTime(time time.Time) *DateTime {
	return &DateTime{Time: time}
}

func (dt *DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.Time.UTC().Format(time.RFC3339))
}

func (dt *DateTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	// some charge points omit the timezone designator
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		parsed, err = time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(raw, "Z"))
		if err != nil {
			return err
		}
	}
	dt.Time = parsed
	return nil
}
