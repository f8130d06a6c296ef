package service

import (
	"errors"

	"github.com/mmynk/paytrack/internal/validation"
)

var (
	// ErrStaleLoad is returned by a load whose result was superseded by a newer load.
	ErrStaleLoad = errors.New("load superseded by a newer one")

	// ErrNoGroup is returned when an operation needs a selected group.
	ErrNoGroup = errors.New("no group selected")

	// ErrUnknownGroup is returned when selecting a group that is not in the group list.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrUnknownUser is returned when acting on a user outside the current roster.
	ErrUnknownUser = errors.New("user is not in the selected group")
)

// ValidationError is a rejected input. No request is made when one is returned.
type ValidationError = validation.Error

// Messages shown to the admin.
const (
	MsgSelectPeriod = "Please select both month and year before marking Paid/Unpaid"
	MsgEmptyMessage = "Message empty"
	MsgNoSelection  = "Select users"
	MsgNoUsers      = "No users to send message"
	MsgLoadHistory  = "Failed to load payment history"
	MsgMessageSent  = "Message sent ✅"
	MsgSentToAll    = "Message sent to all ✅"
	MsgNoGroups     = "No groups"
	MsgNoGroupUsers = "No users in this group"
	MsgServerError  = "Server error"
	MsgNoConnection = "Server bilan ulanishda xatolik"
)
