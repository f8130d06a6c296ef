package models

import "encoding/json"

// User represents a tracked member as returned by GET /users.
type User struct {
	// ID is the canonical identifier ("id", or "_id" when "id" is absent).
	ID string `json:"id"`

	// Name is the first name. May be empty.
	Name string `json:"name"`

	// Surname is the family name. May be empty.
	Surname string `json:"surname"`

	// Phone is the raw phone number as stored by the backend, with or
	// without the +998 country prefix.
	Phone string `json:"phone"`

	// GroupID is the group this user belongs to. Empty for unassigned users.
	GroupID string `json:"groupId"`
}

type userJSON struct {
	ID      FlexString `json:"id"`
	AltID   FlexString `json:"_id"`
	Name    string     `json:"name"`
	Surname string     `json:"surname"`
	Phone   FlexString `json:"phone"`
	GroupID FlexString `json:"groupId"`
}

// UnmarshalJSON decodes a user and normalizes its identity.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw userJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User{
		ID:      firstID(raw.ID, raw.AltID),
		Name:    raw.Name,
		Surname: raw.Surname,
		Phone:   string(raw.Phone),
		GroupID: string(raw.GroupID),
	}
	return nil
}
