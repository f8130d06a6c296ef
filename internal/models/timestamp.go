package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Timestamp is an optional point in time decoded leniently from the API.
//
// Accepted encodings: RFC 3339 strings, plain dates ("2006-01-02"), epoch
// milliseconds, Firestore-style objects ({"_seconds": n, "_nanoseconds": n} or
// {"seconds": n, "nanos": n}) and null. Anything else decodes as an absent
// timestamp instead of failing the whole payments document.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// NewTimestamp returns a valid timestamp for t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// Before reports whether ts sorts before other. Absent timestamps sort before
// every present one and are equal to each other.
func (ts Timestamp) Before(other Timestamp) bool {
	switch {
	case !ts.Valid:
		return other.Valid
	case !other.Valid:
		return false
	default:
		return ts.Time.Before(other.Time)
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type secondsObject struct {
	Seconds     *float64 `json:"_seconds"`
	Nanoseconds float64  `json:"_nanoseconds"`
	AltSeconds  *float64 `json:"seconds"`
	AltNanos    float64  `json:"nanos"`
}

// UnmarshalJSON implements json.Unmarshaler. It never returns an error.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				*ts = NewTimestamp(t)
				return nil
			}
		}
	case '{':
		var obj secondsObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		switch {
		case obj.Seconds != nil:
			*ts = fromSeconds(*obj.Seconds, obj.Nanoseconds)
		case obj.AltSeconds != nil:
			*ts = fromSeconds(*obj.AltSeconds, obj.AltNanos)
		}
	case 'n':
		// null
	default:
		var ms float64
		if err := json.Unmarshal(data, &ms); err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
			return nil
		}
		*ts = NewTimestamp(time.UnixMilli(int64(ms)).UTC())
	}
	return nil
}

func fromSeconds(sec, nanos float64) Timestamp {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return Timestamp{}
	}
	return NewTimestamp(time.Unix(int64(sec), int64(nanos)).UTC())
}

// MarshalJSON encodes the timestamp as RFC 3339, or null when absent.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.UTC().Format(time.RFC3339Nano))
}
