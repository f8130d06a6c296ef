package models

import "encoding/json"

// Group represents a group of users as returned by GET /groups.
type Group struct {
	// ID is the canonical identifier ("id", or "_id" when "id" is absent).
	ID string `json:"id"`

	// Name is the display name of the group (e.g., "Math 7B").
	Name string `json:"name"`
}

type groupJSON struct {
	ID    FlexString `json:"id"`
	AltID FlexString `json:"_id"`
	Name  string     `json:"name"`
}

// UnmarshalJSON decodes a group and normalizes its identity.
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw groupJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = Group{ID: firstID(raw.ID, raw.AltID), Name: raw.Name}
	return nil
}
