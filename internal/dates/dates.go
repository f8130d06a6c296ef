// Package dates holds the calendar helpers behind the month/year selectors.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Placeholder is shown for missing or invalid dates.
const Placeholder = "-"

const (
	// YearsBack and YearsForward bound the year selector around the current year.
	YearsBack    = 3
	YearsForward = 2
)

// MonthNames lists the calendar months in order, as used in month keys.
var MonthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// FormatDate renders t as DD/MM/YYYY in t's location, or Placeholder if t is zero.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Format("02/01/2006")
}

// Years returns the selectable years from now.Year()-back to now.Year()+forward.
func Years(now time.Time, back, forward int) []int {
	current := now.Year()
	years := make([]int, 0, back+forward+1)
	for y := current - back; y <= current+forward; y++ {
		years = append(years, y)
	}
	return years
}

// DefaultYears returns the selector window used by the console.
func DefaultYears(now time.Time) []int {
	return Years(now, YearsBack, YearsForward)
}

// IsMonth reports whether name is one of MonthNames.
func IsMonth(name string) bool {
	for _, m := range MonthNames {
		if m == name {
			return true
		}
	}
	return false
}

// MonthKey builds the billing period key "<month>-<year>".
func MonthKey(month string, year int) string {
	return fmt.Sprintf("%s-%d", month, year)
}

// SplitMonthKey splits a month key into month name and year.
func SplitMonthKey(key string) (month string, year int, err error) {
	i := strings.LastIndex(key, "-")
	if i <= 0 || i == len(key)-1 {
		return "", 0, fmt.Errorf("invalid month key %q", key)
	}
	year, err = strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid year in month key %q: %w", key, err)
	}
	return key[:i], year, nil
}
