package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString decodes a JSON string, number or null into a string.
// Identifiers and phone numbers arrive in either form depending on the backend.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// firstID returns the primary identifier, falling back to the alternate one.
func firstID(primary, alternate FlexString) string {
	if primary != "" {
		return string(primary)
	}
	return string(alternate)
}
