package jsonapi

import (
	"encoding/json"
	"time"
)

// DateTime is a time.Time that encodes as RFC 3339, with the zero time as null.
type DateTime time.Time

// NewDateTime converts t.
func NewDateTime(t time.Time) DateTime { return DateTime(t) }

// Time returns the wrapped time.
func (dt DateTime) Time() time.Time { return time.Time(dt) }

// MarshalJSON implements json.Marshaler.
func (dt DateTime) MarshalJSON() ([]byte, error) {
	if dt.Time().IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(dt.Time().UTC().Format(time.RFC3339))
}

// UnmarshalJSON implements json.Unmarshaler.
func (dt *DateTime) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*dt = DateTime{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return err
	}
	*dt = DateTime(parsed)
	return nil
}
