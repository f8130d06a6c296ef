// Package apitest is an in-memory implementation of the remote users / groups /
// payments / attendance API. Tests run it behind httptest; the console can run
// it in-process for local development.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/paytrack/internal/auth"
	"github.com/mmynk/paytrack/internal/dates"
	"github.com/mmynk/paytrack/internal/middleware"
	"github.com/mmynk/paytrack/internal/models"
)

// Route names used for failure injection and hooks.
const (
	RouteLogin      = "POST /admin/login"
	RouteGroups     = "GET /groups"
	RouteUsers      = "GET /users"
	RoutePayments   = "GET /payments"
	RouteMarkPaid   = "POST /payments/paid"
	RouteMarkUnpaid = "POST /payments/unpaid"
	RouteAttendance = "POST /attendance"
)

// Message is one delivered attendance message.
type Message struct {
	UserID string
	Text   string
	SentAt time.Time

	// SentBy is the admin whose token authorized the request, if any.
	SentBy string
}

type failure struct {
	status  int
	message string
}

type event struct {
	Status   models.PaymentStatus
	Date     time.Time
	MonthKey string
	Name     string
	Surname  string
}

// Server is the fake API. Its zero value is not usable; call New.
type Server struct {
	jwt         *auth.JWTManager
	authn       *auth.PasswordAuthenticator
	requireAuth bool
	legacyIDs   bool
	now         func() time.Time
	bcryptCost  int
	tokenTTL    time.Duration

	mu           sync.Mutex
	groups       []models.Group
	users        []models.User
	payments     map[string][]event
	messages     []Message
	failures     map[string]failure
	userFailures map[string]failure
	hooks        map[string]func()
	requests     map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithoutAuth serves data routes without a bearer token, as the legacy API does.
func WithoutAuth() Option {
	return func(s *Server) { s.requireAuth = false }
}

// WithLegacyIDs encodes group and user identities as "_id" instead of "id".
func WithLegacyIDs() Option {
	return func(s *Server) { s.legacyIDs = true }
}

// WithClock replaces time.Now for payment dates and token issuing.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// New creates an empty fake API with one admin account.
func New(adminUser, adminPassword string, opts ...Option) (*Server, error) {
	s := &Server{
		requireAuth:  true,
		now:          time.Now,
		bcryptCost:   bcrypt.MinCost,
		tokenTTL:     24 * time.Hour,
		payments:     make(map[string][]event),
		failures:     make(map[string]failure),
		userFailures: make(map[string]failure),
		hooks:        make(map[string]func()),
		requests:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.jwt = auth.NewJWTManager(uuid.New().String(), s.tokenTTL)
	s.authn = auth.NewPasswordAuthenticator(auth.NewMemoryAdmins(), s.bcryptCost)
	if _, err := s.authn.Register(context.Background(), adminUser, adminPassword); err != nil {
		return nil, fmt.Errorf("failed to register admin: %w", err)
	}
	return s, nil
}

// Handler returns the API routes rooted at /api.
func (s *Server) Handler() http.Handler {
	protect := func(h http.HandlerFunc) http.Handler {
		if !s.requireAuth {
			return h
		}
		return middleware.RequireBearer(s.jwt)(h)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/admin/login", s.route(RouteLogin, http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /api/groups", s.route(RouteGroups, protect(s.handleGroups)))
	mux.Handle("GET /api/users", s.route(RouteUsers, protect(s.handleUsers)))
	mux.Handle("GET /api/payments", s.route(RoutePayments, protect(s.handlePayments)))
	mux.Handle("POST /api/payments/paid", s.route(RouteMarkPaid, protect(s.handleMark(models.StatusPaid))))
	mux.Handle("POST /api/payments/unpaid", s.route(RouteMarkUnpaid, protect(s.handleMark(models.StatusUnpaid))))
	mux.Handle("POST /api/attendance", s.route(RouteAttendance, protect(s.handleAttendance)))
	return mux
}

// route counts requests, runs hooks and applies injected failures.
func (s *Server) route(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[name]++
		hook := s.hooks[name]
		f, failing := s.failures[name]
		s.mu.Unlock()

		if hook != nil {
			hook()
		}
		if failing {
			writeFailure(w, f)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Fail makes every request to route answer status with an {"error": message}
// body. An empty message sends an empty object instead.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status, message}
}

// FailAttendance makes attendance requests for userID fail.
func (s *Server) FailAttendance(userID string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userFailures[userID] = failure{status, message}
}

// Recover removes every injected failure.
func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
	s.userFailures = make(map[string]failure)
}

// Hook runs fn before each request to route is handled. A nil fn removes the hook.
func (s *Server) Hook(route string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		delete(s.hooks, route)
		return
	}
	s.hooks[route] = fn
}

// Requests returns how many requests route has received.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// Token issues a valid admin token without going through login.
func (s *Server) Token(username string) (string, error) {
	return s.jwt.Generate(username)
}

// AddGroup creates a group and returns its ID.
func (s *Server) AddGroup(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.groups = append(s.groups, models.Group{ID: id, Name: name})
	return id
}

// AddUser creates a user and returns its ID. u.ID is generated when empty.
func (s *Server) AddUser(u models.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	s.users = append(s.users, u)
	return u.ID
}

// AddPayment appends a history event for userID. A zero at stores a null date.
func (s *Server) AddPayment(userID, monthKey string, status models.PaymentStatus, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[userID] = append(s.payments[userID], event{Status: status, Date: at, MonthKey: monthKey})
}

// Messages returns the delivered attendance messages in arrival order.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// History returns the stored events of a user as the API would send them.
func (s *Server) History(userID string) []models.PaymentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PaymentEvent, 0, len(s.payments[userID]))
	for _, e := range s.payments[userID] {
		out = append(out, e.model())
	}
	return out
}

func (e event) model() models.PaymentEvent {
	pe := models.PaymentEvent{
		Status:   e.Status,
		MonthKey: e.MonthKey,
		Name:     e.Name,
		Surname:  e.Surname,
	}
	if !e.Date.IsZero() {
		pe.Date = models.NewTimestamp(e.Date)
	}
	return pe
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	slog.Debug("Login request received", "username", req.Username)

	admin, err := s.authn.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.jwt.Generate(admin.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) identity(id string) map[string]any {
	if s.legacyIDs {
		return map[string]any{"_id": id}
	}
	return map[string]any{"id": id}
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(s.groups))
	for _, g := range s.groups {
		obj := s.identity(g.ID)
		obj["name"] = g.Name
		out = append(out, obj)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(s.users))
	for _, u := range s.users {
		obj := s.identity(u.ID)
		obj["name"] = u.Name
		obj["surname"] = u.Surname
		obj["phone"] = u.Phone
		obj["groupId"] = u.GroupID
		out = append(out, obj)
	}
	writeJSON(w, http.StatusOK, out)
}

type wireTimestamp struct {
	Seconds     int64 `json:"_seconds"`
	Nanoseconds int64 `json:"_nanoseconds"`
}

type wireEvent struct {
	Status   models.PaymentStatus `json:"status"`
	Date     *wireTimestamp       `json:"date"`
	MonthKey string               `json:"monthKey"`
	Name     string               `json:"name,omitempty"`
	Surname  string               `json:"surname,omitempty"`
}

type wireRecord struct {
	History []wireEvent `json:"history"`
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]wireRecord, len(s.payments))
	for userID, events := range s.payments {
		rec := wireRecord{History: make([]wireEvent, 0, len(events))}
		for _, e := range events {
			we := wireEvent{Status: e.Status, MonthKey: e.MonthKey, Name: e.Name, Surname: e.Surname}
			if !e.Date.IsZero() {
				we.Date = &wireTimestamp{Seconds: e.Date.Unix(), Nanoseconds: int64(e.Date.Nanosecond())}
			}
			rec.History = append(rec.History, we)
		}
		out[userID] = rec
	}
	writeJSON(w, http.StatusOK, out)
}

type markRequest struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Month   string `json:"month"`
	Year    string `json:"year"`
}

func (s *Server) handleMark(status models.PaymentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req markRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.UserID == "" || !dates.IsMonth(req.Month) || strings.TrimSpace(req.Year) == "" {
			writeError(w, http.StatusBadRequest, "userId, month and year are required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		e := event{
			Status:   status,
			MonthKey: req.Month + "-" + req.Year,
			Name:     req.Name,
			Surname:  req.Surname,
		}
		if status == models.StatusPaid {
			e.Date = s.now()
		}
		s.payments[req.UserID] = append(s.payments[req.UserID], e)

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "monthKey": e.MonthKey})
	}
}

type attendanceRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "userId and message are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.userFailures[req.UserID]; ok {
		writeFailure(w, f)
		return
	}

	s.messages = append(s.messages, Message{
		UserID: req.UserID,
		Text:   req.Message,
		SentAt: s.now(),
		SentBy: middleware.GetUsername(r.Context()),
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeFailure(w http.ResponseWriter, f failure) {
	if f.message == "" {
		writeJSON(w, f.status, map[string]string{})
		return
	}
	writeError(w, f.status, f.message)
}
