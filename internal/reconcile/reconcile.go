// Package reconcile derives per-user, per-month payment status from the
// payment histories returned by the API.
package reconcile

import (
	"sort"
	"time"

	"github.com/mmynk/paytrack/internal/dates"
	"github.com/mmynk/paytrack/internal/models"
)

// Entry is the current status of one (user, month key) pair.
type Entry struct {
	Status models.PaymentStatus
	Date   models.Timestamp

	// seq is the write position within the user's history. Higher is later.
	seq int
}

// Paid reports whether the entry marks the period as paid.
func (e Entry) Paid() bool {
	return e.Status == models.StatusPaid
}

type userState struct {
	paid       bool
	lastPaidAt models.Timestamp
	months     map[string]Entry
	history    []models.PaymentEvent
}

// Status is the reconciled view of every user's payment history.
// It is not safe for concurrent use.
type Status struct {
	users map[string]*userState
}

// Reconcile builds the status map for the given payments.
//
// Algorithm:
// - Events are applied in history order; the history is append-only, so the
//   last event for a month key is the current one
// - A user is paid if any event is "paid", dated or not
// - The last paid time is the latest dated "paid" event; undated events never
//   count as more recent than dated ones
func Reconcile(payments models.Payments) *Status {
	s := &Status{users: make(map[string]*userState, len(payments))}
	for userID, record := range payments {
		for _, event := range record.History {
			s.apply(userID, event)
		}
	}
	return s
}

func (s *Status) user(userID string) *userState {
	if s == nil || s.users == nil {
		return nil
	}
	return s.users[userID]
}

func (s *Status) apply(userID string, event models.PaymentEvent) {
	if s.users == nil {
		s.users = make(map[string]*userState)
	}
	u, ok := s.users[userID]
	if !ok {
		u = &userState{months: make(map[string]Entry)}
		s.users[userID] = u
	}

	u.history = append(u.history, event)

	if event.Status == models.StatusPaid {
		u.paid = true
		if event.Date.Valid && u.lastPaidAt.Before(event.Date) {
			u.lastPaidAt = event.Date
		}
	}

	if event.MonthKey != "" {
		u.months[event.MonthKey] = Entry{
			Status: event.Status,
			Date:   event.Date,
			seq:    len(u.history),
		}
	}
}

// Record applies a write the server has acknowledged. A paid write keeps its
// date, so callers pass the acknowledgement time; unpaid writes carry none.
func (s *Status) Record(userID, monthKey string, status models.PaymentStatus, at time.Time) {
	event := models.PaymentEvent{Status: status, MonthKey: monthKey}
	if status == models.StatusPaid && !at.IsZero() {
		event.Date = models.NewTimestamp(at)
	}
	s.apply(userID, event)
}

// IsPaid reports whether the user has at least one paid event.
// Users without any history are unpaid.
func (s *Status) IsPaid(userID string) bool {
	u := s.user(userID)
	return u != nil && u.paid
}

// LastPaidAt returns the date of the most recent dated paid event.
func (s *Status) LastPaidAt(userID string) (time.Time, bool) {
	u := s.user(userID)
	if u == nil || !u.lastPaidAt.Valid {
		return time.Time{}, false
	}
	return u.lastPaidAt.Time, true
}

// Lookup returns the current status for the user's month and year.
// The second return value is false when nothing was ever written for it.
func (s *Status) Lookup(userID, month string, year int) (Entry, bool) {
	return s.LookupKey(userID, dates.MonthKey(month, year))
}

// LookupKey is Lookup for a preformatted month key.
func (s *Status) LookupKey(userID, monthKey string) (Entry, bool) {
	u := s.user(userID)
	if u == nil {
		return Entry{}, false
	}
	e, ok := u.months[monthKey]
	return e, ok
}

// LatestPaidMonth returns the month key whose current status is paid and whose
// date is the most recent. Undated entries rank below dated ones; among equal
// dates the later write wins.
func (s *Status) LatestPaidMonth(userID string) (string, Entry, bool) {
	u := s.user(userID)
	if u == nil {
		return "", Entry{}, false
	}

	var (
		bestKey string
		best    Entry
		found   bool
	)
	for key, e := range u.months {
		if !e.Paid() {
			continue
		}
		if !found || best.Date.Before(e.Date) || (!e.Date.Before(best.Date) && e.seq > best.seq) {
			bestKey, best, found = key, e, true
		}
	}
	return bestKey, best, found
}

// History returns the user's events, newest first. Undated events come last,
// in reverse write order.
func (s *Status) History(userID string) []models.PaymentEvent {
	u := s.user(userID)
	if u == nil {
		return nil
	}

	history := make([]models.PaymentEvent, len(u.history))
	for i, e := range u.history {
		history[len(u.history)-1-i] = e
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[j].Date.Before(history[i].Date)
	})
	return history
}
