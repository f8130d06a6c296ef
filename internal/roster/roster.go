// Package roster turns users and reconciled payment status into the rows the
// console renders for the selected group.
package roster

import (
	"sort"
	"strings"
	"time"

	"github.com/mmynk/paytrack/internal/dates"
	"github.com/mmynk/paytrack/internal/models"
	"github.com/mmynk/paytrack/internal/reconcile"
)

const (
	// PhonePrefix is enforced on every displayed phone number.
	PhonePrefix = "+998"

	// Placeholder replaces a missing name or surname.
	Placeholder = "-"

	// NoPhone is displayed when the user has no phone number.
	NoPhone = "N/A"

	LabelPaid   = "Paid"
	LabelUnpaid = "Unpaid"
	LabelUnset  = "—"
)

// RowState drives the row color: paid (green), unpaid (red) or unset (white).
type RowState string

const (
	RowPaid   RowState = "paid"
	RowUnpaid RowState = "unpaid"
	RowUnset  RowState = "unset"
)

// Period is a month/year choice. A zero Year or empty Month means unset.
type Period struct {
	Month string
	Year  int
}

// IsZero reports whether neither month nor year is chosen.
func (p Period) IsZero() bool {
	return p.Month == "" && p.Year == 0
}

// Complete reports whether both month and year are chosen.
func (p Period) Complete() bool {
	return p.Month != "" && p.Year != 0
}

// Row is one rendered roster line.
type Row struct {
	// Index is 1-based and recomputed on every build.
	Index int

	UserID  string
	Name    string
	Surname string
	Phone   string

	// Selected marks the user for the next broadcast.
	Selected bool

	// Paid is true if the user has any paid event. Rows sort on it.
	Paid bool

	// Period holds the row's month/year selectors.
	Period Period

	State       RowState
	StatusLabel string
}

// Options controls how rows are built.
type Options struct {
	// GroupID keeps only users of this group.
	GroupID string

	// Period, when not zero, overrides every row's month/year selectors.
	Period Period

	// Location is used to format paid dates. Defaults to UTC.
	Location *time.Location
}

// Members returns the users of a group in their original order.
func Members(users []models.User, groupID string) []models.User {
	var members []models.User
	if groupID == "" {
		return members
	}
	for _, u := range users {
		if u.GroupID != "" && u.GroupID == groupID {
			members = append(members, u)
		}
	}
	return members
}

// SortUnpaidFirst orders unpaid users before paid ones, keeping the original
// order among users with the same state.
func SortUnpaidFirst(users []models.User, status *reconcile.Status) {
	sort.SliceStable(users, func(i, j int) bool {
		return !status.IsPaid(users[i].ID) && status.IsPaid(users[j].ID)
	})
}

// Build filters users to the group, sorts them unpaid-first and renders rows.
func Build(users []models.User, status *reconcile.Status, selection *Selection, opts Options) []Row {
	members := Members(users, opts.GroupID)
	SortUnpaidFirst(members, status)

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	rows := make([]Row, len(members))
	for i, u := range members {
		row := Row{
			Index:    i + 1,
			UserID:   u.ID,
			Name:     DisplayName(u.Name),
			Surname:  DisplayName(u.Surname),
			Phone:    NormalizePhone(u.Phone),
			Selected: selection.Has(u.ID),
			Paid:     status.IsPaid(u.ID),
		}

		if opts.Period.IsZero() {
			if key, _, ok := status.LatestPaidMonth(u.ID); ok {
				if month, year, err := dates.SplitMonthKey(key); err == nil {
					row.Period = Period{Month: month, Year: year}
				}
			}
		} else {
			row.Period = opts.Period
		}

		row.State, row.StatusLabel = rowStatus(status, u.ID, row.Period, loc)
		rows[i] = row
	}
	return rows
}

func rowStatus(status *reconcile.Status, userID string, p Period, loc *time.Location) (RowState, string) {
	switch {
	case p.IsZero():
		return RowUnpaid, LabelUnpaid
	case !p.Complete():
		return RowUnset, LabelUnset
	}

	e, ok := status.Lookup(userID, p.Month, p.Year)
	if !ok || !e.Paid() {
		return RowUnpaid, LabelUnpaid
	}
	if !e.Date.Valid {
		return RowPaid, LabelPaid
	}
	return RowPaid, dates.FormatDate(e.Date.Time.In(loc))
}

// DisplayName returns s, or Placeholder when s is blank.
func DisplayName(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

// NormalizePhone enforces the +998 prefix. Empty numbers render as NoPhone.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return NoPhone
	}
	if strings.HasPrefix(phone, PhonePrefix) {
		return phone
	}
	return PhonePrefix + phone
}
