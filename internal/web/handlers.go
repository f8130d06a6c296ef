package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmynk/paytrack/internal/apiclient"
	"github.com/mmynk/paytrack/internal/models"
	"github.com/mmynk/paytrack/internal/roster"
	"github.com/mmynk/paytrack/internal/service"
)

type loginData struct {
	Username string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.session.LoggedIn(r.Context()) {
		http.Redirect(w, r, "/groups", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", "Login", loginData{}, "")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if err := s.session.Login(r.Context(), username, password); err != nil {
		s.render(w, r, statusFor(err), "login.html", "Login",
			loginData{Username: strings.TrimSpace(username)},
			userMessage(err, apiclient.MsgLoginFailed))
		return
	}

	// A new session starts from a clean console.
	s.console.Reset()
	http.Redirect(w, r, "/groups", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		slog.Error("Logout failed", "error", err)
	}
	s.console.Reset()
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

type groupsData struct {
	Groups  []models.Group
	Loaded  bool
	Current *models.Group

	// Roster fields are set on the roster page only.
	Rows           []roster.Row
	RosterLoaded   bool
	PaymentsLoaded bool
	Selected       int
	Period         roster.Period
	Empty          string
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	var errText string
	if _, err := s.console.LoadGroups(r.Context()); err != nil && !errors.Is(err, service.ErrStaleLoad) {
		errText = userMessage(err, apiclient.MsgLoadGroups)
	}

	snap := s.console.Snapshot(roster.Period{})
	data := groupsData{
		Groups:  snap.Groups,
		Loaded:  snap.GroupsLoaded,
		Current: snap.Group,
	}
	if snap.GroupsLoaded && len(snap.Groups) == 0 {
		data.Empty = service.MsgNoGroups
	}
	s.render(w, r, http.StatusOK, "groups.html", "Groups", data, errText)
}

// periodFromQuery reads the optional ?month=&year= override.
func periodFromQuery(q url.Values) roster.Period {
	year, _ := strconv.Atoi(q.Get("year"))
	return roster.Period{Month: q.Get("month"), Year: year}
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID := r.PathValue("id")

	status := http.StatusOK
	var errText string

	if _, loaded := s.console.Groups(); !loaded {
		if _, err := s.console.LoadGroups(ctx); err != nil && !errors.Is(err, service.ErrStaleLoad) {
			errText = userMessage(err, apiclient.MsgLoadGroups)
		}
	}

	var err error
	if s.console.GroupID() != groupID {
		err = s.console.SelectGroup(ctx, groupID)
	} else if r.URL.Query().Get("reload") != "" {
		err = s.console.Reload(ctx)
	}
	switch {
	case err == nil, errors.Is(err, service.ErrStaleLoad):
	case errors.Is(err, service.ErrUnknownGroup):
		http.NotFound(w, r)
		return
	default:
		status = statusFor(err)
		errText = userMessage(err, apiclient.MsgLoadUsers)
	}

	period := periodFromQuery(r.URL.Query())
	snap := s.console.Snapshot(period)
	data := groupsData{
		Groups:         snap.Groups,
		Loaded:         snap.GroupsLoaded,
		Current:        snap.Group,
		Rows:           snap.Rows,
		RosterLoaded:   true,
		PaymentsLoaded: snap.PaymentsLoaded,
		Selected:       snap.Selected,
		Period:         period,
	}
	if len(snap.Rows) == 0 {
		data.Empty = service.MsgNoGroupUsers
	}
	s.render(w, r, status, "groups.html", "Group", data, errText)
}

// currentGroup rejects actions aimed at a group other than the loaded one.
func (s *Server) currentGroup(w http.ResponseWriter, r *http.Request) (string, bool) {
	groupID := r.PathValue("id")
	if s.console.GroupID() != groupID {
		redirect(w, r, rosterPath(groupID), "", "")
		return "", false
	}
	return groupID, true
}

func rosterPath(groupID string) string {
	return "/groups/" + url.PathEscape(groupID)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.currentGroup(w, r)
	if !ok {
		return
	}

	userID := r.PostFormValue("user_id")
	year, _ := strconv.Atoi(r.PostFormValue("year"))
	period := roster.Period{Month: r.PostFormValue("month"), Year: year}

	var err error
	var fallback string
	switch models.PaymentStatus(r.PostFormValue("status")) {
	case models.StatusPaid:
		err = s.console.MarkPaid(r.Context(), userID, period)
		fallback = apiclient.MsgMarkPaid
	case models.StatusUnpaid:
		err = s.console.MarkUnpaid(r.Context(), userID, period)
		fallback = apiclient.MsgMarkUnpaid
	default:
		http.Error(w, "status must be paid or unpaid", http.StatusBadRequest)
		return
	}

	if err != nil {
		redirect(w, r, rosterPath(groupID), "", userMessage(err, fallback))
		return
	}
	redirect(w, r, rosterPath(groupID), "", "")
}

type historyData struct {
	Group      *models.Group
	UserID     string
	Events     []models.PaymentEvent
	Deliveries []*models.Delivery
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	userID := r.PathValue("userID")

	data := historyData{
		Group:  &models.Group{ID: groupID},
		UserID: userID,
	}
	if snap := s.console.Snapshot(roster.Period{}); snap.Group != nil && snap.Group.ID == groupID {
		data.Group = snap.Group
	}

	events, err := s.console.History(r.Context(), userID)
	if err != nil {
		s.render(w, r, statusFor(err), "history.html", "Payment history", data, service.MsgLoadHistory)
		return
	}
	data.Events = events

	deliveries, err := s.console.UserDeliveries(r.Context(), userID, 20)
	if err != nil {
		slog.Warn("Failed to load deliveries", "user_id", userID, "error", err)
	}
	data.Deliveries = deliveries

	s.render(w, r, http.StatusOK, "history.html", "Payment history", data, "")
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.currentGroup(w, r)
	if !ok {
		return
	}

	switch {
	case r.PostFormValue("all") != "":
		s.console.SelectAll()
	case r.PostFormValue("none") != "":
		s.console.ClearSelection()
	default:
		if _, err := s.console.Toggle(r.PostFormValue("user_id")); err != nil {
			redirect(w, r, rosterPath(groupID), "", userMessage(err, err.Error()))
			return
		}
	}
	redirect(w, r, rosterPath(groupID), "", "")
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.currentGroup(w, r)
	if !ok {
		return
	}

	text := r.PostFormValue("text")
	all := r.PostFormValue("target") == "all"

	var result *service.BroadcastResult
	var err error
	if all {
		result, err = s.console.SendToAll(r.Context(), text)
	} else {
		result, err = s.console.SendMessage(r.Context(), text)
	}

	switch {
	case err != nil:
		redirect(w, r, rosterPath(groupID), "", userMessage(err, service.MsgServerError))
	case !result.OK():
		redirect(w, r, rosterPath(groupID), "", result.Summary())
	case all:
		redirect(w, r, rosterPath(groupID), service.MsgSentToAll, "")
	default:
		redirect(w, r, rosterPath(groupID), service.MsgMessageSent, "")
	}
}
